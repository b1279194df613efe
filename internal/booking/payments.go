package booking

import (
	"context"
	"errors"

	"bike_booking/internal/model"
	"bike_booking/internal/payment"
	"bike_booking/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errReplayed = errors.New("payment already applied")

// StartPayment opens (or reopens) a gateway order for whatever is payable
// now. An unresolved attempt is reused, and its id is always sent as the
// receipt, so retries never create a second order.
func (s *Service) StartPayment(ctx context.Context, bookingID string) (PaymentOrder, error) {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return PaymentOrder{}, err
	}
	defer unlock()

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return PaymentOrder{}, translate(err)
	}
	amount, err := payableNow(*b)
	if err != nil {
		return PaymentOrder{}, err
	}

	attempt, reused, err := s.openAttempt(ctx, b, amount)
	if err != nil {
		return PaymentOrder{}, translate(err)
	}
	logger := s.log.WithFields(logrus.Fields{"booking_id": b.ID, "attempt_id": attempt.ID})

	if attempt.OrderReference == nil {
		order, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
			BookingID: b.ID,
			Receipt:   attempt.ID,
			Amount:    attempt.Amount,
		})
		if err != nil {
			logger.WithError(err).Warn("create gateway order failed")
			return PaymentOrder{}, translate(err)
		}
		if !order.Amount.Equal(attempt.Amount) {
			return PaymentOrder{}, newError(KindAmountMismatch, "gateway order amount differs from payable amount", nil)
		}
		if err := s.store.SetAttemptOrder(ctx, attempt.ID, order.Reference); err != nil {
			return PaymentOrder{}, translate(err)
		}
		attempt.OrderReference = &order.Reference
		logger.WithField("order_ref", order.Reference).Info("payment order created")
	}

	return PaymentOrder{
		AttemptID:      attempt.ID,
		BookingID:      b.ID,
		OrderReference: *attempt.OrderReference,
		Amount:         attempt.Amount,
		Reused:         reused,
	}, nil
}

// openAttempt picks the attempt to pay now. An attempt that already has a
// gateway order is never dropped implicitly: the payer may have paid it, so
// it is handed back while the booking can still absorb its amount.
func (s *Service) openAttempt(ctx context.Context, b *model.Booking, amount decimal.Decimal) (*model.PaymentAttempt, bool, error) {
	existing, err := s.store.UnresolvedAttempt(ctx, b.ID)
	switch {
	case err == nil && existing.Amount.Equal(amount):
		return existing, true, nil
	case err == nil && existing.OrderReference != nil:
		if existing.Amount.GreaterThan(b.Remaining()) {
			return nil, false, newError(KindInvalidState, "an earlier payment order is unresolved, verify or abandon it first", nil)
		}
		return existing, true, nil
	case err == nil:
		// No order was ever handed out for it, so nobody can have paid it.
		if _, err := s.store.AbandonAttempt(ctx, existing.ID); err != nil {
			return nil, false, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, err
	}

	a := &model.PaymentAttempt{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		Amount:    amount,
		Status:    model.AttemptInitiated,
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// ApplyPayment credits a verified payment to its booking. amount is the
// amount the client claims to have paid; zero means "whatever the gateway
// confirmed". Replaying an already applied confirmation returns the booking
// unchanged.
func (s *Service) ApplyPayment(ctx context.Context, bookingID string, amount decimal.Decimal, v payment.Verification) (View, error) {
	if v.OrderReference == "" || v.PaymentReference == "" || v.Signature == "" {
		return View{}, newError(KindInvalidInput, "order_ref, payment_ref and signature are required", nil)
	}
	if amount.IsNegative() {
		return View{}, newError(KindInvalidInput, "amount must not be negative", nil)
	}
	if v.BookingID != "" && v.BookingID != bookingID {
		return View{}, newError(KindVerificationFailed, "verification belongs to another booking", nil)
	}

	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	logger := s.log.WithFields(logrus.Fields{"booking_id": bookingID, "order_ref": v.OrderReference})

	attempt, err := s.store.AttemptByOrderRef(ctx, v.OrderReference)
	if errors.Is(err, store.ErrNotFound) {
		return View{}, newError(KindVerificationFailed, "unknown order reference", nil)
	}
	if err != nil {
		return View{}, translate(err)
	}
	if attempt.BookingID != bookingID {
		return View{}, newError(KindVerificationFailed, "order belongs to another booking", nil)
	}
	switch attempt.Status {
	case model.AttemptPaid:
		logger.Info("payment replay ignored")
		return s.GetBooking(ctx, bookingID)
	case model.AttemptCreated, model.AttemptExpired:
		// An expired order can still have been paid before the sweep.
	default:
		return View{}, newError(KindVerificationFailed, "payment attempt is "+string(attempt.Status), nil)
	}

	conf, err := s.gateway.VerifyPayment(ctx, v)
	if err != nil {
		logger.WithError(err).Warn("payment verification failed")
		return View{}, translate(err)
	}
	if !conf.Amount.Equal(attempt.Amount) {
		return View{}, newError(KindAmountMismatch, "confirmed amount differs from requested amount", nil)
	}
	if !amount.IsZero() && !amount.Equal(conf.Amount) {
		return View{}, newError(KindAmountMismatch, "claimed amount differs from confirmed amount", nil)
	}

	var (
		updated *model.Booking
		from    model.BookingStatus
	)
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !acceptsPayment(*b) {
			return newError(KindInvalidState, "booking does not accept payments in status "+string(b.Status), nil)
		}
		if conf.Amount.GreaterThan(b.Remaining()) {
			return newError(KindAmountMismatch, "payment exceeds remaining amount", nil)
		}
		ok, err := tx.MarkAttemptPaid(ctx, attempt.ID, conf.PaymentReference)
		if err != nil {
			return err
		}
		if !ok {
			return errReplayed
		}

		from = b.Status
		b.PaidAmount = b.PaidAmount.Add(conf.Amount)
		if b.Status == model.BookingAccepted && b.Remaining().IsZero() {
			if err := moveTo(b, model.BookingConfirmed); err != nil {
				return err
			}
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if errors.Is(err, errReplayed) {
		logger.Info("payment replay ignored")
		return s.GetBooking(ctx, bookingID)
	}
	if err != nil {
		return View{}, translate(err)
	}

	logger.WithFields(logrus.Fields{
		"amount":    conf.Amount.StringFixed(MoneyPlaces),
		"remaining": updated.Remaining().StringFixed(MoneyPlaces),
		"status":    updated.Status,
	}).Info("payment applied")
	s.publish(ctx, EventPaymentApplied, from, updated)
	return NewView(*updated), nil
}

// AbandonPayment records that the payer dismissed checkout. The booking is
// untouched; StartPayment opens a fresh attempt next time.
func (s *Service) AbandonPayment(ctx context.Context, orderRef string) error {
	if orderRef == "" {
		return newError(KindInvalidInput, "order_ref is required", nil)
	}
	attempt, err := s.store.AttemptByOrderRef(ctx, orderRef)
	if errors.Is(err, store.ErrNotFound) {
		return newError(KindNotFound, "payment order not found", nil)
	}
	if err != nil {
		return translate(err)
	}

	unlock, err := s.lock(ctx, attempt.BookingID)
	if err != nil {
		return err
	}
	defer unlock()

	ok, err := s.store.AbandonAttempt(ctx, attempt.ID)
	if err != nil {
		return translate(err)
	}
	if !ok {
		return newError(KindInvalidState, "payment attempt is already resolved", nil)
	}
	s.log.WithFields(logrus.Fields{"booking_id": attempt.BookingID, "order_ref": orderRef}).Info("payment abandoned")
	return nil
}
