package booking

import (
	"time"

	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
)

// Draft is everything a customer picks before checkout.
type Draft struct {
	CustomerID            uint                `json:"customer_id"`
	DealerID              uint                `json:"dealer_id"`
	BikeID                uint                `json:"bike_id"`
	PaymentOption         model.PaymentOption `json:"payment_option"`
	RequestedDeliveryDate *time.Time          `json:"requested_delivery_date,omitempty"`
}

func (d Draft) validate() error {
	if d.CustomerID == 0 || d.DealerID == 0 || d.BikeID == 0 {
		return newError(KindInvalidReference, "customer_id, dealer_id and bike_id are required", nil)
	}
	switch d.PaymentOption {
	case model.PaymentFull, model.PaymentAdvance:
	default:
		return newError(KindInvalidInput, "payment_option must be FULL or ADVANCE", nil)
	}
	return nil
}

// Quote is the checkout preview for a draft.
type Quote struct {
	DealerID              uint                `json:"dealer_id"`
	BikeID                uint                `json:"bike_id"`
	PaymentOption         model.PaymentOption `json:"payment_option"`
	TotalAmount           decimal.Decimal     `json:"total_amount"`
	InitialPayable        decimal.Decimal     `json:"initial_payable"`
	RemainingAfterInitial decimal.Decimal     `json:"remaining_after_initial"`
	Offer                 string              `json:"offer,omitempty"`
}

// View is the read model returned to clients.
type View struct {
	BookingID             string              `json:"booking_id"`
	CustomerID            uint                `json:"customer_id"`
	DealerID              uint                `json:"dealer_id"`
	BikeID                uint                `json:"bike_id"`
	Status                model.BookingStatus `json:"status"`
	PaymentOption         model.PaymentOption `json:"payment_option"`
	TotalAmount           decimal.Decimal     `json:"total_amount"`
	PaidAmount            decimal.Decimal     `json:"paid_amount"`
	RemainingAmount       decimal.Decimal     `json:"remaining_amount"`
	RequestedDeliveryDate *time.Time          `json:"requested_delivery_date,omitempty"`
	DeliveryDate          *time.Time          `json:"delivery_date,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

func NewView(b model.Booking) View {
	return View{
		BookingID:             b.ID,
		CustomerID:            b.CustomerID,
		DealerID:              b.DealerID,
		BikeID:                b.BikeID,
		Status:                b.Status,
		PaymentOption:         b.PaymentOption,
		TotalAmount:           b.TotalAmount,
		PaidAmount:            b.PaidAmount,
		RemainingAmount:       b.Remaining(),
		RequestedDeliveryDate: b.RequestedDeliveryDate,
		DeliveryDate:          b.DeliveryDate,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
}

func newViews(list []model.Booking) []View {
	out := make([]View, 0, len(list))
	for _, b := range list {
		out = append(out, NewView(b))
	}
	return out
}

// PaymentOrder is what the payer's client needs to open checkout.
type PaymentOrder struct {
	AttemptID      string          `json:"attempt_id"`
	BookingID      string          `json:"booking_id"`
	OrderReference string          `json:"order_ref"`
	Amount         decimal.Decimal `json:"amount"`
	Reused         bool            `json:"reused"`
}
