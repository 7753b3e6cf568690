package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ridecore/internal/bus"
	"ridecore/internal/domain/entities"
	"ridecore/internal/repository/memory"
)

type flakyBus struct {
	failNext int
	inner    *bus.MemoryBus
}

func (f *flakyBus) Publish(ctx context.Context, topic, partitionKey string, env bus.Envelope) error {
	if f.failNext > 0 {
		f.failNext--
		return errors.New("bus temporarily unavailable")
	}
	return f.inner.Publish(ctx, topic, partitionKey, env)
}

func TestOutboxRelayPublishesFIFO(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	eventBus := bus.NewMemoryBus()
	ctx := context.Background()

	for i, evt := range []string{entities.EventPaymentInitiated, entities.EventPaymentCaptured} {
		entry := entities.NewOutboxEntry("ob-"+string(rune('a'+i)), "pay-1", "tenant-a", evt, []byte(`{"event_type":"`+evt+`","payload":{}}`))
		entry.CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, outbox.Create(ctx, entry))
	}

	relay := NewOutboxRelay(outbox, eventBus, memory.NoopTx, 500*time.Millisecond, 50, 5, zap.NewNop().Sugar())
	require.NoError(t, relay.sweep(ctx))

	published := eventBus.ByPartitionKey("pay-1")
	require.Len(t, published, 2)
	assert.Equal(t, entities.EventPaymentInitiated, published[0].Topic)
	assert.Equal(t, entities.EventPaymentCaptured, published[1].Topic)
}

func TestOutboxRelayRetriesThenFailsAfterMaxRetries(t *testing.T) {
	outbox := memory.NewOutboxRepository()
	flaky := &flakyBus{failNext: 999, inner: bus.NewMemoryBus()}
	ctx := context.Background()

	entry := entities.NewOutboxEntry("ob-x", "pay-2", "tenant-a", entities.EventPaymentInitiated, []byte(`{"event_type":"payment.initiated","payload":{}}`))
	require.NoError(t, outbox.Create(ctx, entry))

	relay := NewOutboxRelay(outbox, flaky, memory.NoopTx, 500*time.Millisecond, 50, 3, zap.NewNop().Sugar())
	for i := 0; i < 3; i++ {
		require.NoError(t, relay.sweep(ctx))
	}

	stored, err := outbox.ListPendingFIFO(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored, "row must leave PENDING (marked FAILED) once retries are exhausted")
}
