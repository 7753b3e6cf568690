package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBus publishes envelopes over NATS. Publish is synchronous — a
// Publish followed by FlushWithContext, so the caller sees the broker ack
// without requiring a JetStream stream to be provisioned up front.
//
// Subjects are "{topic}.{partitionKey}" so consumers subscribing on
// "{topic}.*" still see every event for the topic, while a per-entity
// subscription on the exact subject observes strictly ordered delivery —
// NATS preserves publish order on a single connection per subject.
type NATSBus struct {
	conn *nats.Conn
	log  *zap.SugaredLogger
}

func NewNATSBus(conn *nats.Conn, log *zap.SugaredLogger) *NATSBus {
	return &NATSBus{conn: conn, log: log}
}

var _ Bus = (*NATSBus)(nil)

func subject(topic, partitionKey string) string {
	return fmt.Sprintf("%s.%s", topic, partitionKey)
}

func (b *NATSBus) Publish(ctx context.Context, topic, partitionKey string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	subj := subject(topic, partitionKey)
	if err := b.conn.Publish(subj, data); err != nil {
		return err
	}
	if err := b.conn.FlushWithContext(ctx); err != nil {
		return err
	}
	b.log.Debugw("published event", "subject", subj, "event_type", env.EventType)
	return nil
}
