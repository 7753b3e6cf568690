package entities

import "time"

// OutboxStatus is the transactional outbox row's lifecycle.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxPublished OutboxStatus = "PUBLISHED"
	OutboxFailed    OutboxStatus = "FAILED"
)

// Event type strings carried in OutboxEntry.EventType.
const (
	EventPaymentInitiated = "payment.initiated"
	EventPaymentCaptured  = "payment.captured"
	EventPaymentFailed    = "payment.failed"
)

// OutboxEntry is the row inserted alongside a Payment in the same
// transaction, later drained by the Outbox Relay.
// Transitions are PENDING→PUBLISHED or PENDING→FAILED, both terminal.
type OutboxEntry struct {
	ID          string
	PaymentID   string
	TenantID    string
	EventType   string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	PublishedAt *time.Time
	RetryCount  int
}

// NewOutboxEntry creates a PENDING row carrying an opaque serialized payload.
func NewOutboxEntry(id, paymentID, tenantID, eventType string, payload []byte) *OutboxEntry {
	return &OutboxEntry{
		ID:        id,
		PaymentID: paymentID,
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxPending,
		CreatedAt: time.Now(),
	}
}

// MarkPublished records a successful bus publish.
func (o *OutboxEntry) MarkPublished() {
	now := time.Now()
	o.Status = OutboxPublished
	o.PublishedAt = &now
}

// MarkRetryOrFail bumps retry_count and flips to FAILED once maxRetries is reached.
func (o *OutboxEntry) MarkRetryOrFail(maxRetries int) {
	o.RetryCount++
	if o.RetryCount >= maxRetries {
		o.Status = OutboxFailed
	}
}
