package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bike_booking/internal/model"
)

func TestAdvanceBookingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{price: "100000", stock: 3})

	q, err := f.svc.Quote(ctx, f.draft(model.PaymentAdvance))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.InitialPayable.Equal(dec("20000")) || !q.RemainingAfterInitial.Equal(dec("80000")) {
		t.Fatalf("unexpected quote %+v", q)
	}

	b := f.create(t, model.PaymentAdvance)
	if b.Status != model.BookingPending || !b.PaidAmount.IsZero() || !b.TotalAmount.Equal(dec("100000")) {
		t.Fatalf("unexpected new booking %+v", b)
	}
	if f.stock(t) != 3 {
		t.Fatalf("creating a booking must not take stock")
	}

	b = f.pay(t, b.BookingID)
	if b.Status != model.BookingPending || !b.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("after advance: %+v", b)
	}

	b, err = f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(7))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if b.Status != model.BookingAccepted || !b.RemainingAmount.Equal(dec("80000")) {
		t.Fatalf("after accept: %+v", b)
	}
	if f.stock(t) != 2 {
		t.Fatalf("accept should take one unit, stock is %d", f.stock(t))
	}

	b = f.pay(t, b.BookingID)
	if b.Status != model.BookingConfirmed || !b.RemainingAmount.IsZero() || !b.PaidAmount.Equal(dec("100000")) {
		t.Fatalf("after balance: %+v", b)
	}

	b, err = f.svc.DeliverBooking(ctx, b.BookingID)
	if err != nil || b.Status != model.BookingDelivered {
		t.Fatalf("deliver: %+v %v", b, err)
	}

	var types []string
	for _, e := range f.sink.Events() {
		types = append(types, e.Type)
	}
	want := []string{EventCreated, EventPaymentApplied, EventAccepted, EventPaymentApplied, EventDelivered}
	if len(types) != len(want) {
		t.Fatalf("events %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events %v, want %v", types, want)
		}
	}
}

func TestAcceptFullyPrepaidConfirms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})

	b := f.create(t, model.PaymentFull)
	b = f.pay(t, b.BookingID)
	if b.Status != model.BookingPending || !b.RemainingAmount.IsZero() {
		t.Fatalf("full prepayment: %+v", b)
	}
	b, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(5))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if b.Status != model.BookingConfirmed {
		t.Fatalf("fully paid booking should confirm on accept, got %s", b.Status)
	}
}

func TestCreateBookingRejectsBadReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})

	d := f.draft(model.PaymentFull)
	d.BikeID = 999
	_, err := f.svc.CreateBooking(ctx, d)
	assertKind(t, err, KindInvalidReference)

	d = f.draft(model.PaymentFull)
	d.CustomerID = 0
	_, err = f.svc.CreateBooking(ctx, d)
	assertKind(t, err, KindInvalidReference)

	d = f.draft("LATER")
	_, err = f.svc.CreateBooking(ctx, d)
	assertKind(t, err, KindInvalidInput)

	if err := f.db.Model(&model.Dealer{}).Where("id = ?", f.dealerID).Update("verified", false).Error; err != nil {
		t.Fatalf("unverify: %v", err)
	}
	_, err = f.svc.CreateBooking(ctx, f.draft(model.PaymentFull))
	assertKind(t, err, KindInvalidReference)
}

func TestCreateBookingNeedsStock(t *testing.T) {
	f := newFixture(t, fixtureOpts{stock: 0})
	_, err := f.svc.CreateBooking(context.Background(), f.draft(model.PaymentFull))
	assertKind(t, err, KindInvalidReference)
}

func TestAcceptOutOfStockLeavesPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentFull)

	if err := f.db.Model(&model.Listing{}).Where("dealer_id = ?", f.dealerID).Update("stock", 0).Error; err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(3))
	assertKind(t, err, KindOutOfStock)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected errors.Is ErrOutOfStock")
	}

	got, err := f.svc.GetBooking(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BookingPending || got.DeliveryDate != nil {
		t.Fatalf("failed accept must not change the booking: %+v", got)
	}
}

func TestConcurrentAcceptsForLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	first := f.create(t, model.PaymentFull)
	second := f.create(t, model.PaymentFull)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.BookingID, second.BookingID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptBooking(ctx, id, f.inDays(4))
		}(i, id)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || outOfStock != 1 {
		t.Fatalf("expected one success and one out of stock, got %d/%d", ok, outOfStock)
	}
	if f.stock(t) != 0 {
		t.Fatalf("stock should be 0, got %d", f.stock(t))
	}
}

func TestAcceptRequiresDeliveryDateAndPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 2})
	b := f.create(t, model.PaymentFull)

	_, err := f.svc.AcceptBooking(ctx, b.BookingID, time.Time{})
	assertKind(t, err, KindInvalidInput)

	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(3)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(3))
	assertKind(t, err, KindInvalidState)
	if f.stock(t) != 1 {
		t.Fatalf("second accept must not take stock, got %d", f.stock(t))
	}

	_, err = f.svc.AcceptBooking(ctx, "missing", f.inDays(3))
	assertKind(t, err, KindNotFound)
}

func TestRejectOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 2})
	b := f.create(t, model.PaymentFull)

	v, err := f.svc.RejectBooking(ctx, b.BookingID)
	if err != nil || v.Status != model.BookingRejected {
		t.Fatalf("reject: %+v %v", v, err)
	}
	if f.stock(t) != 2 {
		t.Fatalf("reject must not touch stock")
	}

	for name, op := range map[string]func() (View, error){
		"accept":  func() (View, error) { return f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(3)) },
		"reject":  func() (View, error) { return f.svc.RejectBooking(ctx, b.BookingID) },
		"cancel":  func() (View, error) { return f.svc.CancelBooking(ctx, b.BookingID) },
		"deliver": func() (View, error) { return f.svc.DeliverBooking(ctx, b.BookingID) },
	} {
		if _, err := op(); KindOf(err) != KindInvalidState {
			t.Errorf("%s on rejected booking: expected INVALID_STATE, got %v", name, err)
		}
	}
	if _, err := f.svc.StartPayment(ctx, b.BookingID); KindOf(err) != KindInvalidState {
		t.Errorf("payment on rejected booking: expected INVALID_STATE, got %v", err)
	}
}

func TestCancelWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 5})

	pending := f.create(t, model.PaymentAdvance)
	v, err := f.svc.CancelBooking(ctx, pending.BookingID)
	if err != nil || v.Status != model.BookingCancelled {
		t.Fatalf("cancel pending: %+v %v", v, err)
	}
	_, err = f.svc.CancelBooking(ctx, pending.BookingID)
	assertKind(t, err, KindInvalidState)

	tomorrow := f.create(t, model.PaymentAdvance)
	if _, err := f.svc.AcceptBooking(ctx, tomorrow.BookingID, f.inDays(1)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = f.svc.CancelBooking(ctx, tomorrow.BookingID)
	assertKind(t, err, KindCancellationWindowClosed)

	later := f.create(t, model.PaymentAdvance)
	if _, err := f.svc.AcceptBooking(ctx, later.BookingID, f.inDays(3)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	v, err = f.svc.CancelBooking(ctx, later.BookingID)
	if err != nil || v.Status != model.BookingCancelled {
		t.Fatalf("cancel three days out: %+v %v", v, err)
	}
	if f.stock(t) != 3 {
		t.Fatalf("stock is not restored by default, expected 3 got %d", f.stock(t))
	}

	// The clock moving forward closes the window.
	soon := f.create(t, model.PaymentAdvance)
	if _, err := f.svc.AcceptBooking(ctx, soon.BookingID, f.inDays(2)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.clock.mu.Lock()
	f.clock.now = f.clock.now.Add(25 * time.Hour)
	f.clock.mu.Unlock()
	_, err = f.svc.CancelBooking(ctx, soon.BookingID)
	assertKind(t, err, KindCancellationWindowClosed)
}

func TestCancelConfirmedRestoresStockWhenEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1, restoreStock: true})

	b := f.create(t, model.PaymentFull)
	f.pay(t, b.BookingID)
	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(10)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if f.stock(t) != 0 {
		t.Fatalf("expected stock 0 after accept")
	}
	v, err := f.svc.CancelBooking(ctx, b.BookingID)
	if err != nil || v.Status != model.BookingCancelled {
		t.Fatalf("cancel confirmed: %+v %v", v, err)
	}
	if !v.PaidAmount.Equal(dec("100000")) {
		t.Fatalf("cancel must not refund, paid is %s", v.PaidAmount)
	}
	if f.stock(t) != 1 {
		t.Fatalf("expected restored stock 1, got %d", f.stock(t))
	}
}

func TestDeliverRequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)
	f.pay(t, b.BookingID)
	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(2)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := f.svc.DeliverBooking(ctx, b.BookingID)
	assertKind(t, err, KindInvalidState)
}

func TestListingQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 5})
	a := f.create(t, model.PaymentFull)
	f.create(t, model.PaymentAdvance)
	if _, err := f.svc.RejectBooking(ctx, a.BookingID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := f.svc.ListBookings(ctx, ListFilter{})
	assertKind(t, err, KindInvalidInput)
	_, err = f.svc.ListBookings(ctx, ListFilter{CustomerID: f.customerID, Status: "LOST"})
	assertKind(t, err, KindInvalidInput)

	mine, err := f.svc.ListBookings(ctx, ListFilter{CustomerID: f.customerID})
	if err != nil || len(mine) != 2 {
		t.Fatalf("customer bookings: %d %v", len(mine), err)
	}
	pending, err := f.svc.PendingBookings(ctx, f.dealerID)
	if err != nil || len(pending) != 1 || pending[0].PaymentOption != model.PaymentAdvance {
		t.Fatalf("pending queue: %+v %v", pending, err)
	}

	stats, err := f.svc.DealerStats(ctx, f.dealerID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[model.BookingRejected] != 1 || stats.ByStatus[model.BookingPending] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !stats.Collected.IsZero() {
		t.Fatalf("nothing collected yet, got %s", stats.Collected)
	}

	_, err = f.svc.History(ctx, "missing")
	assertKind(t, err, KindNotFound)
}
