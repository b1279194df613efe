package booking

import (
	"errors"
	"testing"

	"bike_booking/internal/model"
)

func TestTransitionTable(t *testing.T) {
	all := []model.BookingStatus{
		model.BookingPending, model.BookingAccepted, model.BookingConfirmed,
		model.BookingDelivered, model.BookingCancelled, model.BookingRejected,
	}
	allowed := map[[2]model.BookingStatus]bool{
		{model.BookingPending, model.BookingAccepted}:    true,
		{model.BookingPending, model.BookingRejected}:    true,
		{model.BookingPending, model.BookingCancelled}:   true,
		{model.BookingAccepted, model.BookingConfirmed}:  true,
		{model.BookingAccepted, model.BookingCancelled}:  true,
		{model.BookingConfirmed, model.BookingDelivered}: true,
		{model.BookingConfirmed, model.BookingCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]model.BookingStatus{from, to}] {
				t.Errorf("%s -> %s: expected %v", from, to, !got)
			}
		}
	}
	for _, s := range []model.BookingStatus{model.BookingCancelled, model.BookingRejected, model.BookingDelivered} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	if ValidStatus("SHIPPED") {
		t.Errorf("unknown status accepted")
	}
}

func TestErrorKindsMatch(t *testing.T) {
	err := newError(KindOutOfStock, "dealer has no stock left", nil)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected errors.Is to match on kind")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Fatalf("different kinds must not match")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("unclassified errors are internal")
	}
	if !Retryable(newError(KindGatewayUnavailable, "", nil)) || !Retryable(newError(KindBusy, "", nil)) {
		t.Fatalf("gateway outages and lock contention are retryable")
	}
	if Retryable(err) || Retryable(newError(KindInvalidState, "", nil)) {
		t.Fatalf("business rejections are not retryable")
	}
}
