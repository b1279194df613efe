package booking

import (
	"context"
	"errors"
	"time"

	"bike_booking/internal/catalog"
	"bike_booking/internal/inventory"
	"bike_booking/internal/model"
	"bike_booking/internal/payment"
	"bike_booking/internal/store"
	rediskey "bike_booking/pkg/redis"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultCancellationWindow is how close to delivery an accepted booking
// stops being cancellable.
const DefaultCancellationWindow = 24 * time.Hour

// Deps are the collaborators of a Service. Events and Locker are optional.
type Deps struct {
	Store     *store.Store
	Ledger    *inventory.Ledger
	Directory *catalog.Directory
	Gateway   payment.Gateway
	Locker    Locker
	Events    EventSink
	Logger    *logrus.Logger
}

type Options struct {
	RestoreStockOnCancel bool
	CancellationWindow   time.Duration
	// LockTimeout bounds how long an operation waits for the booking lock.
	LockTimeout time.Duration
	Now         func() time.Time
}

// Service drives the booking lifecycle. Every mutating operation holds the
// booking lock and commits in one transaction; events go out after commit.
type Service struct {
	store     *store.Store
	ledger    *inventory.Ledger
	directory *catalog.Directory
	gateway   payment.Gateway
	locker    Locker
	events    EventSink
	log       *logrus.Logger
	opts      Options
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if opts.CancellationWindow <= 0 {
		opts.CancellationWindow = DefaultCancellationWindow
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     deps.Store,
		ledger:    deps.Ledger,
		directory: deps.Directory,
		gateway:   deps.Gateway,
		locker:    deps.Locker,
		events:    deps.Events,
		log:       deps.Logger,
		opts:      opts,
	}
}

// Quote prices a draft without writing anything.
func (s *Service) Quote(ctx context.Context, d Draft) (Quote, error) {
	li, err := s.resolveDraft(ctx, d)
	if err != nil {
		return Quote{}, err
	}
	preview := model.Booking{PaymentOption: d.PaymentOption, TotalAmount: li.Price}
	initial := ComputeInitialPayable(preview)
	return Quote{
		DealerID:              d.DealerID,
		BikeID:                d.BikeID,
		PaymentOption:         d.PaymentOption,
		TotalAmount:           li.Price,
		InitialPayable:        initial,
		RemainingAfterInitial: li.Price.Sub(initial),
		Offer:                 li.Offer,
	}, nil
}

// CreateBooking opens a PENDING booking at the dealer's current price.
// Stock is only taken when the dealer accepts.
func (s *Service) CreateBooking(ctx context.Context, d Draft) (View, error) {
	li, err := s.resolveDraft(ctx, d)
	if err != nil {
		return View{}, err
	}

	b := &model.Booking{
		ID:                    uuid.NewString(),
		CustomerID:            d.CustomerID,
		DealerID:              d.DealerID,
		BikeID:                d.BikeID,
		Status:                model.BookingPending,
		PaymentOption:         d.PaymentOption,
		TotalAmount:           li.Price,
		PaidAmount:            decimal.Zero,
		RequestedDeliveryDate: d.RequestedDeliveryDate,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return View{}, translate(err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"dealer_id":  b.DealerID,
		"total":      b.TotalAmount.StringFixed(MoneyPlaces),
	}).Info("booking created")
	s.publish(ctx, EventCreated, "", b)
	return NewView(*b), nil
}

func (s *Service) resolveDraft(ctx context.Context, d Draft) (*model.Listing, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := s.directory.Resolve(ctx, d.CustomerID, d.DealerID, d.BikeID); err != nil {
		return nil, translate(err)
	}
	li, err := s.ledger.GetListing(ctx, nil, d.DealerID, d.BikeID)
	if err != nil {
		return nil, translate(err)
	}
	if li.Stock <= 0 {
		return nil, newError(KindInvalidReference, "bike is not in stock at this dealer", nil)
	}
	return li, nil
}

// AcceptBooking takes one unit of stock and fixes the delivery date. A
// booking that is already fully paid goes straight to CONFIRMED.
func (s *Service) AcceptBooking(ctx context.Context, bookingID string, deliveryDate time.Time) (View, error) {
	if deliveryDate.IsZero() {
		return View{}, newError(KindInvalidInput, "delivery_date is required", nil)
	}
	return s.mutate(ctx, bookingID, func(ctx context.Context, tx *store.Store, b *model.Booking) (string, error) {
		if err := moveTo(b, model.BookingAccepted); err != nil {
			return "", err
		}
		if err := s.ledger.DecrementStock(ctx, tx.DB(), b.DealerID, b.BikeID); err != nil {
			return "", err
		}
		d := deliveryDate
		b.DeliveryDate = &d
		if b.Remaining().IsZero() {
			if err := moveTo(b, model.BookingConfirmed); err != nil {
				return "", err
			}
		}
		return EventAccepted, nil
	})
}

func (s *Service) RejectBooking(ctx context.Context, bookingID string) (View, error) {
	return s.mutate(ctx, bookingID, func(_ context.Context, _ *store.Store, b *model.Booking) (string, error) {
		return EventRejected, moveTo(b, model.BookingRejected)
	})
}

// CancelBooking cancels a PENDING booking, or an accepted one whose
// delivery is more than the cancellation window away.
func (s *Service) CancelBooking(ctx context.Context, bookingID string) (View, error) {
	return s.mutate(ctx, bookingID, func(ctx context.Context, tx *store.Store, b *model.Booking) (string, error) {
		if err := s.cancellable(*b); err != nil {
			return "", err
		}
		stockTaken := b.Status != model.BookingPending
		if err := moveTo(b, model.BookingCancelled); err != nil {
			return "", err
		}
		if stockTaken && s.opts.RestoreStockOnCancel {
			if err := s.ledger.RestoreStock(ctx, tx.DB(), b.DealerID, b.BikeID); err != nil {
				return "", err
			}
		}
		return EventCancelled, nil
	})
}

func (s *Service) cancellable(b model.Booking) error {
	switch b.Status {
	case model.BookingPending:
		return nil
	case model.BookingAccepted, model.BookingConfirmed:
		if b.DeliveryDate == nil || b.DeliveryDate.Sub(s.opts.Now()) <= s.opts.CancellationWindow {
			return newError(KindCancellationWindowClosed, "delivery is too close to cancel", nil)
		}
		return nil
	}
	return newError(KindInvalidState, "booking in status "+string(b.Status)+" cannot be cancelled", nil)
}

func (s *Service) DeliverBooking(ctx context.Context, bookingID string) (View, error) {
	return s.mutate(ctx, bookingID, func(_ context.Context, _ *store.Store, b *model.Booking) (string, error) {
		return EventDelivered, moveTo(b, model.BookingDelivered)
	})
}

func (s *Service) GetBooking(ctx context.Context, bookingID string) (View, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return View{}, translate(err)
	}
	return NewView(*b), nil
}

// ListFilter selects bookings of one customer or one dealer.
type ListFilter struct {
	CustomerID uint
	DealerID   uint
	Status     model.BookingStatus
}

func (s *Service) ListBookings(ctx context.Context, f ListFilter) ([]View, error) {
	if f.CustomerID == 0 && f.DealerID == 0 {
		return nil, newError(KindInvalidInput, "customer_id or dealer_id is required", nil)
	}
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, newError(KindInvalidInput, "unknown status "+string(f.Status), nil)
	}
	list, err := s.store.ListBookings(ctx, store.BookingFilter{
		CustomerID: f.CustomerID,
		DealerID:   f.DealerID,
		Status:     f.Status,
	})
	if err != nil {
		return nil, translate(err)
	}
	return newViews(list), nil
}

// PendingBookings is the dealer's decision queue.
func (s *Service) PendingBookings(ctx context.Context, dealerID uint) ([]View, error) {
	return s.ListBookings(ctx, ListFilter{DealerID: dealerID, Status: model.BookingPending})
}

func (s *Service) DealerStats(ctx context.Context, dealerID uint) (store.DealerStats, error) {
	if dealerID == 0 {
		return store.DealerStats{}, newError(KindInvalidInput, "dealer_id is required", nil)
	}
	st, err := s.store.DealerStats(ctx, dealerID)
	if err != nil {
		return store.DealerStats{}, translate(err)
	}
	return st, nil
}

// History returns the consumed event trail of a booking, oldest first.
func (s *Service) History(ctx context.Context, bookingID string) ([]model.BookingHistory, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, translate(err)
	}
	list, err := s.store.History(ctx, bookingID)
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

type mutation func(ctx context.Context, tx *store.Store, b *model.Booking) (eventType string, err error)

// mutate loads the booking under its lock, applies m and writes the result
// with a version check, all in one transaction.
func (s *Service) mutate(ctx context.Context, bookingID string, m mutation) (View, error) {
	unlock, err := s.lock(ctx, bookingID)
	if err != nil {
		return View{}, err
	}
	defer unlock()

	var (
		updated   *model.Booking
		from      model.BookingStatus
		eventType string
	)
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		from = b.Status
		if eventType, err = m(ctx, tx, b); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return View{}, translate(err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"from":       from,
		"to":         updated.Status,
	}).Info("booking transition")
	s.publish(ctx, eventType, from, updated)
	return NewView(*updated), nil
}

func (s *Service) lock(ctx context.Context, bookingID string) (func(), error) {
	if bookingID == "" {
		return nil, newError(KindInvalidInput, "booking_id is required", nil)
	}
	lctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()
	unlock, err := s.locker.Lock(lctx, rediskey.BookingLockKey(bookingID))
	if err != nil {
		return nil, newError(KindBusy, "booking is busy, retry", err)
	}
	return unlock, nil
}

func (s *Service) publish(ctx context.Context, eventType string, from model.BookingStatus, b *model.Booking) {
	e := Event{
		ID:         uuid.NewString(),
		BookingID:  b.ID,
		Type:       eventType,
		From:       from,
		To:         b.Status,
		PaidAmount: b.PaidAmount,
		OccurredAt: s.opts.Now().UTC(),
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.ID,
			"event":      eventType,
		}).Warn("publish booking event failed")
	}
}

// translate maps collaborator errors onto booking error kinds.
func translate(err error) error {
	var be *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &be):
		return err
	case errors.Is(err, store.ErrNotFound):
		return newError(KindNotFound, "booking not found", nil)
	case errors.Is(err, store.ErrStale):
		return newError(KindBusy, "booking was modified concurrently, retry", err)
	case errors.Is(err, inventory.ErrOutOfStock):
		return newError(KindOutOfStock, "dealer has no stock left for this bike", nil)
	case errors.Is(err, inventory.ErrListingNotFound):
		return newError(KindInvalidReference, "dealer does not list this bike", nil)
	case errors.Is(err, catalog.ErrUnknownCustomer),
		errors.Is(err, catalog.ErrUnknownDealer),
		errors.Is(err, catalog.ErrDealerUnverified),
		errors.Is(err, catalog.ErrUnknownBike):
		return newError(KindInvalidReference, err.Error(), nil)
	case errors.Is(err, payment.ErrVerificationFailed):
		return newError(KindVerificationFailed, "payment could not be verified", err)
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return newError(KindGatewayUnavailable, "payment gateway unavailable, retry", err)
	}
	return newError(KindInternal, "internal error", err)
}
