package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingHistory is the audit trail written by the booking event consumer.
type BookingHistory struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"recorded_at"`

	EventID    string          `gorm:"size:36;uniqueIndex;not null" json:"event_id"`
	BookingID  string          `gorm:"size:36;not null;index" json:"booking_id"`
	Type       string          `gorm:"size:32;not null" json:"type"`
	FromStatus BookingStatus   `gorm:"size:16" json:"from_status,omitempty"`
	ToStatus   BookingStatus   `gorm:"size:16;not null" json:"to_status"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_amount"`
	OccurredAt time.Time       `gorm:"not null" json:"occurred_at"`
}

func (BookingHistory) TableName() string { return "booking_history" }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Customer{}, &Dealer{}, &Bike{},
		&Listing{}, &Booking{}, &PaymentAttempt{}, &BookingHistory{},
	}
}
