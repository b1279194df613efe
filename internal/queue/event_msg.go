package queue

import (
	"fmt"
	"time"

	"bike_booking/internal/booking"
	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
)

// BookingEvent is the wire form of a committed booking change, both in the
// Redis Stream outbox and on the Kafka topic.
type BookingEvent struct {
	EventID    string              `json:"event_id"`
	BookingID  string              `json:"booking_id"`
	Type       string              `json:"type"`
	FromStatus model.BookingStatus `json:"from_status,omitempty"`
	ToStatus   model.BookingStatus `json:"to_status"`
	PaidAmount decimal.Decimal     `json:"paid_amount"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func FromDomain(e booking.Event) BookingEvent {
	return BookingEvent{
		EventID:    e.ID,
		BookingID:  e.BookingID,
		Type:       e.Type,
		FromStatus: e.From,
		ToStatus:   e.To,
		PaidAmount: e.PaidAmount,
		OccurredAt: e.OccurredAt,
	}
}

// Validate rejects messages the consumer could not record.
func (m BookingEvent) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.BookingID == "" {
		return fmt.Errorf("booking_id is required")
	}
	if m.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !booking.ValidStatus(m.ToStatus) {
		return fmt.Errorf("invalid to_status %q", m.ToStatus)
	}
	if m.FromStatus != "" && !booking.ValidStatus(m.FromStatus) {
		return fmt.Errorf("invalid from_status %q", m.FromStatus)
	}
	if m.PaidAmount.IsNegative() {
		return fmt.Errorf("paid_amount must be >= 0")
	}
	if m.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	return nil
}

func (m BookingEvent) streamValues() map[string]any {
	return map[string]any{
		"event_id":    m.EventID,
		"booking_id":  m.BookingID,
		"type":        m.Type,
		"from_status": string(m.FromStatus),
		"to_status":   string(m.ToStatus),
		"paid_amount": m.PaidAmount.String(),
		"occurred_at": m.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func (m BookingEvent) history() model.BookingHistory {
	return model.BookingHistory{
		EventID:    m.EventID,
		BookingID:  m.BookingID,
		Type:       m.Type,
		FromStatus: m.FromStatus,
		ToStatus:   m.ToStatus,
		PaidAmount: m.PaidAmount,
		OccurredAt: m.OccurredAt,
	}
}
