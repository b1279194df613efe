package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable is a transient provider or network failure.
	// Callers retry with the same receipt / order reference.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrVerificationFailed means the payment could not be proven authentic.
	ErrVerificationFailed = errors.New("payment verification failed")
)

// Gateway is the external payment provider boundary.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifyPayment(ctx context.Context, v Verification) (Confirmation, error)
}

// OrderRequest asks the provider for a payable order. Receipt is our
// attempt id; gateways look an order up by it before creating another.
type OrderRequest struct {
	BookingID string
	Receipt   string
	Amount    decimal.Decimal
}

type Order struct {
	Reference string
	Amount    decimal.Decimal
}

// Verification is what the payer's client hands back after checkout.
type Verification struct {
	BookingID        string `json:"booking_id"`
	OrderReference   string `json:"order_ref"`
	PaymentReference string `json:"payment_ref"`
	Signature        string `json:"signature"`
}

// Confirmation is a verified payment and the amount the provider authorized.
type Confirmation struct {
	OrderReference   string
	PaymentReference string
	Amount           decimal.Decimal
}
