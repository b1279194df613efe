package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentAttemptStatus tracks a single gateway order.
type PaymentAttemptStatus string

const (
	AttemptInitiated PaymentAttemptStatus = "INITIATED" // row written, gateway order not created yet
	AttemptCreated   PaymentAttemptStatus = "CREATED"   // gateway order exists, awaiting payer
	AttemptPaid      PaymentAttemptStatus = "PAID"      // verified and credited, final
	AttemptAbandoned PaymentAttemptStatus = "ABANDONED" // payer dismissed checkout
	AttemptExpired   PaymentAttemptStatus = "EXPIRED"   // swept after TTL
)

// Unresolved reports whether the attempt may still be paid.
func (s PaymentAttemptStatus) Unresolved() bool {
	return s == AttemptInitiated || s == AttemptCreated
}

// PaymentAttempt is the reconciliation record for one payable action.
// ID doubles as the gateway receipt so retries never create a second order.
type PaymentAttempt struct {
	ID        string    `gorm:"size:36;primarykey" json:"attempt_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BookingID        string               `gorm:"size:36;not null;index" json:"booking_id"`
	Amount           decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"amount"`
	OrderReference   *string              `gorm:"size:64;uniqueIndex" json:"order_ref,omitempty"`
	PaymentReference string               `gorm:"size:64" json:"payment_ref,omitempty"`
	Status           PaymentAttemptStatus `gorm:"size:16;not null;index" json:"status"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }
