package booking

import (
	"context"
	"testing"
	"time"

	"bike_booking/internal/model"
	"bike_booking/internal/payment"
	"bike_booking/internal/store"
	rediskey "bike_booking/pkg/redis"

	"github.com/shopspring/decimal"
)

func TestPaymentReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)

	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start payment: %v", err)
	}
	v := f.gateway.Pay(b.BookingID, order.OrderReference)

	first, err := f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	again, err := f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.PaidAmount.Equal(first.PaidAmount) || !again.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("replay changed paid amount: %s -> %s", first.PaidAmount, again.PaidAmount)
	}

	applied := 0
	for _, e := range f.sink.Events() {
		if e.Type == EventPaymentApplied {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("expected one payment event, got %d", applied)
	}
}

func TestStartPaymentReusesUnresolvedAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentFull)

	first, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !second.Reused || second.AttemptID != first.AttemptID || second.OrderReference != first.OrderReference {
		t.Fatalf("expected the same attempt back: %+v vs %+v", first, second)
	}

	var n int64
	f.db.Model(&model.PaymentAttempt{}).Where("booking_id = ?", b.BookingID).Count(&n)
	if n != 1 {
		t.Fatalf("expected one attempt row, got %d", n)
	}
}

func TestGatewayUnavailableLeavesBookingRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentFull)

	f.gateway.FailureRate = 1
	_, err := f.svc.StartPayment(ctx, b.BookingID)
	assertKind(t, err, KindGatewayUnavailable)
	if !Retryable(err) {
		t.Fatalf("gateway outage should be retryable")
	}

	var attempt model.PaymentAttempt
	if err := f.db.Where("booking_id = ?", b.BookingID).First(&attempt).Error; err != nil {
		t.Fatalf("load attempt: %v", err)
	}
	if attempt.Status != model.AttemptInitiated || attempt.OrderReference != nil {
		t.Fatalf("attempt should wait for retry: %+v", attempt)
	}

	f.gateway.FailureRate = 0
	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if order.AttemptID != attempt.ID {
		t.Fatalf("retry should reuse attempt %s, got %s", attempt.ID, order.AttemptID)
	}

	v := f.gateway.Pay(b.BookingID, order.OrderReference)
	f.gateway.FailureRate = 1
	_, err = f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v)
	assertKind(t, err, KindGatewayUnavailable)
	got, _ := f.svc.GetBooking(ctx, b.BookingID)
	if !got.PaidAmount.IsZero() {
		t.Fatalf("failed verification must not credit, paid %s", got.PaidAmount)
	}

	f.gateway.FailureRate = 0
	got, err = f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v)
	if err != nil || !got.RemainingAmount.IsZero() {
		t.Fatalf("retry apply: %+v %v", got, err)
	}
}

func TestApplyPaymentRejectsForgeries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 2})
	b := f.create(t, model.PaymentAdvance)
	other := f.create(t, model.PaymentAdvance)

	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	good := f.gateway.Pay(b.BookingID, order.OrderReference)

	forged := good
	forged.Signature = payment.Sign("wrong-secret", good.OrderReference, good.PaymentReference)
	_, err = f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, forged)
	assertKind(t, err, KindVerificationFailed)

	unknown := f.gateway.Pay(b.BookingID, "order_unknown")
	_, err = f.svc.ApplyPayment(ctx, b.BookingID, decimal.Zero, unknown)
	assertKind(t, err, KindVerificationFailed)

	crossed := good
	crossed.BookingID = other.BookingID
	_, err = f.svc.ApplyPayment(ctx, other.BookingID, order.Amount, crossed)
	assertKind(t, err, KindVerificationFailed)

	_, err = f.svc.ApplyPayment(ctx, b.BookingID, dec("100000"), good)
	assertKind(t, err, KindAmountMismatch)

	f.gateway.SetOrderAmount(order.OrderReference, dec("19999"))
	_, err = f.svc.ApplyPayment(ctx, b.BookingID, decimal.Zero, good)
	assertKind(t, err, KindAmountMismatch)

	got, _ := f.svc.GetBooking(ctx, b.BookingID)
	if got.Status != model.BookingPending || !got.PaidAmount.IsZero() {
		t.Fatalf("rejected payments must leave the booking alone: %+v", got)
	}
}

func TestPaymentNotAcceptedAfterInitialWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)
	f.pay(t, b.BookingID)

	_, err := f.svc.StartPayment(ctx, b.BookingID)
	assertKind(t, err, KindInvalidState)
}

func TestAbandonedAttemptCannotBePaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)

	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.AbandonPayment(ctx, order.OrderReference); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	assertKind(t, f.svc.AbandonPayment(ctx, order.OrderReference), KindInvalidState)
	assertKind(t, f.svc.AbandonPayment(ctx, "order_nope"), KindNotFound)

	_, err = f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, f.gateway.Pay(b.BookingID, order.OrderReference))
	assertKind(t, err, KindVerificationFailed)

	fresh, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if fresh.Reused || fresh.OrderReference == order.OrderReference {
		t.Fatalf("abandoned attempt must not be reused")
	}
	v, err := f.svc.ApplyPayment(ctx, b.BookingID, fresh.Amount, f.gateway.Pay(b.BookingID, fresh.OrderReference))
	if err != nil || !v.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("pay fresh attempt: %+v %v", v, err)
	}
}

func TestPaidNeverExceedsTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{price: "10.03", stock: 1})
	b := f.create(t, model.PaymentAdvance)

	b = f.pay(t, b.BookingID)
	if !b.PaidAmount.Equal(dec("2.01")) {
		t.Fatalf("advance on 10.03 should be 2.01, got %s", b.PaidAmount)
	}
	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(4)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	b = f.pay(t, b.BookingID)
	if !b.PaidAmount.Equal(b.TotalAmount) || b.Status != model.BookingConfirmed {
		t.Fatalf("balance: %+v", b)
	}
	_, err := f.svc.StartPayment(ctx, b.BookingID)
	assertKind(t, err, KindInvalidState)
}

func TestAdvancePaidBeforeAcceptIsStillCredited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)

	advance, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start advance: %v", err)
	}
	v := f.gateway.Pay(b.BookingID, advance.OrderReference)

	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(5)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	again, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start after accept: %v", err)
	}
	if !again.Reused || again.OrderReference != advance.OrderReference || !again.Amount.Equal(dec("20000")) {
		t.Fatalf("unresolved advance order must be handed back: %+v", again)
	}

	got, err := f.svc.ApplyPayment(ctx, b.BookingID, decimal.Zero, v)
	if err != nil {
		t.Fatalf("late advance confirmation: %v", err)
	}
	if got.Status != model.BookingAccepted || !got.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("advance not credited: %+v", got)
	}

	balance, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start balance: %v", err)
	}
	if balance.Reused || !balance.Amount.Equal(dec("80000")) {
		t.Fatalf("balance order: %+v", balance)
	}
}

func TestUnresolvedOrderAboveRemainingBlocksNewOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)

	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.db.Model(&model.PaymentAttempt{}).Where("id = ?", order.AttemptID).
		Update("amount", dec("150000")).Error; err != nil {
		t.Fatalf("inflate attempt: %v", err)
	}

	_, err = f.svc.StartPayment(ctx, b.BookingID)
	assertKind(t, err, KindInvalidState)

	var n int64
	f.db.Model(&model.PaymentAttempt{}).Where("booking_id = ?", b.BookingID).Count(&n)
	if n != 1 {
		t.Fatalf("no second order may be opened, got %d attempts", n)
	}
}

func TestExpiredOrderPaidLateIsCredited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentAdvance)

	order, err := f.svc.StartPayment(ctx, b.BookingID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	v := f.gateway.Pay(b.BookingID, order.OrderReference)

	if n, err := store.New(f.db).ExpireAttempts(ctx, time.Now().Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("expire: %d %v", n, err)
	}

	got, err := f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v)
	if err != nil {
		t.Fatalf("apply on expired order: %v", err)
	}
	if !got.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("expired order not credited: %+v", got)
	}
	if again, err := f.svc.ApplyPayment(ctx, b.BookingID, order.Amount, v); err != nil || !again.PaidAmount.Equal(dec("20000")) {
		t.Fatalf("replay on expired order: %+v %v", again, err)
	}
}

func TestLockContentionIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixtureOpts{stock: 1})
	b := f.create(t, model.PaymentFull)
	f.svc.opts.LockTimeout = 50 * time.Millisecond

	release, err := f.svc.locker.Lock(ctx, rediskey.BookingLockKey(b.BookingID))
	if err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	_, err = f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(5))
	release()
	assertKind(t, err, KindBusy)
	if !Retryable(err) {
		t.Fatalf("lock contention should be retryable")
	}

	if _, err := f.svc.AcceptBooking(ctx, b.BookingID, f.inDays(5)); err != nil {
		t.Fatalf("accept after release: %v", err)
	}
}
