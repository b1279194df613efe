package booking

import "bike_booking/internal/model"

// transitions is the whole state machine. CONFIRMED -> CANCELLED exists
// only through the cancellation window check in CancelBooking.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingAccepted, model.BookingRejected, model.BookingCancelled},
	model.BookingAccepted:  {model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingDelivered, model.BookingCancelled},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.BookingStatus) bool {
	return len(transitions[s]) == 0
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s model.BookingStatus) bool {
	switch s {
	case model.BookingPending, model.BookingAccepted, model.BookingConfirmed,
		model.BookingDelivered, model.BookingCancelled, model.BookingRejected:
		return true
	}
	return false
}

func moveTo(b *model.Booking, to model.BookingStatus) error {
	if !CanTransition(b.Status, to) {
		return newError(KindInvalidState, "cannot move booking from "+string(b.Status)+" to "+string(to), nil)
	}
	b.Status = to
	return nil
}
