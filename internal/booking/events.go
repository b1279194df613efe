package booking

import (
	"context"
	"sync"
	"time"

	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
)

// Event types published after every committed change.
const (
	EventCreated        = "booking.created"
	EventAccepted       = "booking.accepted"
	EventRejected       = "booking.rejected"
	EventCancelled      = "booking.cancelled"
	EventDelivered      = "booking.delivered"
	EventPaymentApplied = "booking.payment_applied"
)

// Event describes one committed booking change.
type Event struct {
	ID         string
	BookingID  string
	Type       string
	From       model.BookingStatus
	To         model.BookingStatus
	PaidAmount decimal.Decimal
	OccurredAt time.Time
}

// EventSink receives events after the owning transaction has committed.
// A publish failure never undoes the change.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) error { return nil }

// MemorySink records events in order.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
