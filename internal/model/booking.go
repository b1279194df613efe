package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingAccepted  BookingStatus = "ACCEPTED"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingDelivered BookingStatus = "DELIVERED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingRejected  BookingStatus = "REJECTED"
)

// PaymentOption decides only the first payable amount.
type PaymentOption string

const (
	PaymentFull    PaymentOption = "FULL"
	PaymentAdvance PaymentOption = "ADVANCE"
)

// Booking is one customer's request for one unit of a dealer's listing.
// The remaining amount is always derived from TotalAmount and PaidAmount.
type Booking struct {
	ID        string    `gorm:"size:36;primarykey" json:"booking_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CustomerID uint `gorm:"not null;index" json:"customer_id"`
	DealerID   uint `gorm:"not null;index" json:"dealer_id"`
	BikeID     uint `gorm:"not null;index" json:"bike_id"`

	Status        BookingStatus   `gorm:"size:16;not null;index" json:"status"`
	PaymentOption PaymentOption   `gorm:"size:16;not null" json:"payment_option"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"paid_amount"`

	RequestedDeliveryDate *time.Time `json:"requested_delivery_date,omitempty"`
	DeliveryDate          *time.Time `json:"delivery_date,omitempty"`

	// Version guards every write: UPDATE ... WHERE id = ? AND version = ?.
	Version int64 `gorm:"not null;default:0" json:"-"`
}

func (Booking) TableName() string { return "bookings" }

// Remaining returns TotalAmount - PaidAmount, floored at zero.
func (b Booking) Remaining() decimal.Decimal {
	r := b.TotalAmount.Sub(b.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
