package bus

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// Handler processes one decoded envelope off a subscription. A returned
// error is logged and the message is otherwise considered handled — core
// NATS subjects (as opposed to JetStream) carry no redelivery, so a
// handler that needs retry-until-success semantics (the Outbox Relay, the
// Reconciler) drives its own retry loop against durable storage instead of
// relying on redelivery here.
type Handler func(ctx context.Context, env Envelope) error

// Subscriber is the consume-side counterpart to Bus. Only NATSBus
// implements it: in-memory tests call service methods directly instead of
// round-tripping through a fake subscription.
type Subscriber interface {
	// Subscribe joins queueGroup on every subject matching "{topic}.*"
	// (the "{topic}.{partitionKey}" publish convention), decodes each
	// message as an Envelope, and runs handler. Multiple processes sharing
	// queueGroup split the traffic instead of each seeing every message.
	// Blocks until ctx is cancelled.
	Subscribe(ctx context.Context, topic, queueGroup string, handler Handler) error
}

var _ Subscriber = (*NATSBus)(nil)

func (b *NATSBus) Subscribe(ctx context.Context, topic, queueGroup string, handler Handler) error {
	sub, err := b.conn.QueueSubscribe(topic+".*", queueGroup, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.log.Warnw("failed to decode event envelope", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(context.Background(), env); err != nil {
			b.log.Warnw("event handler failed", "subject", msg.Subject, "event_type", env.EventType, "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	b.log.Infow("subscribed", "topic_pattern", topic+".*", "queue_group", queueGroup)
	<-ctx.Done()
	return nil
}
