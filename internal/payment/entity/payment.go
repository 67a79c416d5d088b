package entity

import "time"

const (
	StatusInitiated = "initiated"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// PendingPayment is one row in the payments ledger, keyed by the provider's
// transaction reference. Status only ever moves initiated → completed or
// initiated → failed; terminal rows are immutable and retained for audit.
type PendingPayment struct {
	TransactionRef string     `db:"transaction_ref" json:"transaction_ref"`
	MerchantRef    string     `db:"merchant_ref" json:"merchant_ref"`
	UserID         int64      `db:"user_id" json:"user_id"`
	ContentID      string     `db:"content_id" json:"content_id"`
	AmountCents    int64      `db:"amount_cents" json:"amount_cents"`
	Msisdn         string     `db:"msisdn" json:"msisdn"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the payment has reached a final state.
func (p *PendingPayment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// Outcome is the provider's terminal verdict carried by a callback.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Disposition describes what a confirmation attempt did with a callback.
type Disposition string

const (
	// DispositionCompleted: this attempt moved the payment to completed.
	DispositionCompleted Disposition = "completed"
	// DispositionFailed: this attempt moved the payment to failed.
	DispositionFailed Disposition = "failed"
	// DispositionDuplicate: the payment was already terminal; nothing changed.
	DispositionDuplicate Disposition = "duplicate"
	// DispositionUnknown: no ledger row for the reference; nothing changed.
	DispositionUnknown Disposition = "unknown"
)

// ConfirmResult reports the effect of processing one callback delivery.
type ConfirmResult struct {
	Disposition Disposition
	// Payment is the ledger row the callback referenced (nil for unknown refs).
	Payment *PendingPayment
	// Granted is true when this confirmation wrote a new access grant.
	Granted bool
}
