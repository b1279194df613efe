package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox is an in-process gateway for development and tests. It signs and
// verifies exactly like the real provider but keeps orders in memory.
type Sandbox struct {
	secret string

	// FailureRate in [0,1] makes CreateOrder/VerifyPayment fail with
	// ErrGatewayUnavailable at random.
	FailureRate float64

	mu        sync.Mutex
	orders    map[string]Order  // by reference
	byReceipt map[string]string // receipt -> reference
}

func NewSandbox(secret string, failureRate float64) *Sandbox {
	return &Sandbox{
		secret:      secret,
		FailureRate: failureRate,
		orders:      make(map[string]Order),
		byReceipt:   make(map[string]string),
	}
}

func (s *Sandbox) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	if s.unavailable() {
		return Order{}, fmt.Errorf("sandbox create order: %w", ErrGatewayUnavailable)
	}
	if !req.Amount.IsPositive() {
		return Order{}, fmt.Errorf("sandbox create order: amount must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.byReceipt[req.Receipt]; ok && req.Receipt != "" {
		return s.orders[ref], nil
	}
	o := Order{
		Reference: "order_" + uuid.New().String()[:14],
		Amount:    req.Amount,
	}
	s.orders[o.Reference] = o
	if req.Receipt != "" {
		s.byReceipt[req.Receipt] = o.Reference
	}
	return o, nil
}

func (s *Sandbox) VerifyPayment(_ context.Context, v Verification) (Confirmation, error) {
	if s.unavailable() {
		return Confirmation{}, fmt.Errorf("sandbox verify: %w", ErrGatewayUnavailable)
	}
	if !ValidSignature(s.secret, v.OrderReference, v.PaymentReference, v.Signature) {
		return Confirmation{}, ErrVerificationFailed
	}
	s.mu.Lock()
	o, ok := s.orders[v.OrderReference]
	s.mu.Unlock()
	if !ok {
		return Confirmation{}, fmt.Errorf("unknown order %s: %w", v.OrderReference, ErrVerificationFailed)
	}
	return Confirmation{
		OrderReference:   o.Reference,
		PaymentReference: v.PaymentReference,
		Amount:           o.Amount,
	}, nil
}

// Pay simulates the payer completing checkout and returns what their client
// would post back for verification.
func (s *Sandbox) Pay(bookingID, orderRef string) Verification {
	paymentRef := "pay_" + uuid.New().String()[:14]
	return Verification{
		BookingID:        bookingID,
		OrderReference:   orderRef,
		PaymentReference: paymentRef,
		Signature:        Sign(s.secret, orderRef, paymentRef),
	}
}

// SetOrderAmount overrides what the provider reports for an order.
func (s *Sandbox) SetOrderAmount(orderRef string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderRef]; ok {
		o.Amount = amount
		s.orders[orderRef] = o
	}
}

func (s *Sandbox) unavailable() bool {
	return s.FailureRate > 0 && rand.Float64() < s.FailureRate
}
