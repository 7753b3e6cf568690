package entities

import "time"

// PaymentStatus is the Payment row's lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentCaptured PaymentStatus = "CAPTURED"
	PaymentFailed   PaymentStatus = "FAILED"
)

// Payment is the relational row the Orchestrator inserts atomically with
// its outbox entry. At most one row per TripID; the uniqueness is a DB
// constraint, never a lookup race.
type Payment struct {
	ID            string
	TripID        string
	RiderID       string
	TenantID      string
	Amount        Money
	PaymentMethod string
	PSPReference  string
	Status        PaymentStatus
	FailureReason string
	RetryCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment creates a PENDING payment row with retry_count=0.
func NewPayment(id, tripID, riderID, tenantID string, amount Money, paymentMethod string) *Payment {
	now := time.Now()
	return &Payment{
		ID:            id,
		TripID:        tripID,
		RiderID:       riderID,
		TenantID:      tenantID,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		Status:        PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkCaptured records a successful PSP charge.
func (p *Payment) MarkCaptured(pspReference string) {
	p.Status = PaymentCaptured
	p.PSPReference = pspReference
	p.FailureReason = ""
	p.UpdatedAt = time.Now()
}

// MarkFailed records a PSP failure and bumps the retry counter.
func (p *Payment) MarkFailed(reason string) {
	p.Status = PaymentFailed
	p.FailureReason = reason
	p.RetryCount++
	p.UpdatedAt = time.Now()
}

// IsStalePending reports whether this row has sat in PENDING longer than
// threshold — the crash-recovery signal the 10-minute reconciler sweep
// looks for.
func (p *Payment) IsStalePending(now time.Time, threshold time.Duration) bool {
	return p.Status == PaymentPending && now.Sub(p.CreatedAt) >= threshold
}
