package store

import (
	"context"
	"errors"
	"time"

	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale means the row changed between read and write.
	ErrStale = errors.New("stale booking version")
)

// Store persists bookings and their payment attempts. A Store obtained
// through Transaction is bound to that transaction.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the bound handle so collaborators can join the transaction.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn inside one database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var b model.Booking
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBooking writes the mutable fields if nobody else has written since
// b was read, then bumps b.Version.
func (s *Store) UpdateBooking(ctx context.Context, b *model.Booking) error {
	res := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]any{
			"status":        b.Status,
			"paid_amount":   b.PaidAmount,
			"delivery_date": b.DeliveryDate,
			"version":       b.Version + 1,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	b.Version++
	return nil
}

// BookingFilter selects bookings by owner; zero fields are ignored.
type BookingFilter struct {
	CustomerID uint
	DealerID   uint
	Status     model.BookingStatus
}

func (s *Store) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := s.db.WithContext(ctx).Model(&model.Booking{})
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.DealerID != 0 {
		q = q.Where("dealer_id = ?", f.DealerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var list []model.Booking
	if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// DealerStats summarizes a dealer's bookings.
type DealerStats struct {
	DealerID  uint                          `json:"dealer_id"`
	ByStatus  map[model.BookingStatus]int64 `json:"by_status"`
	Total     int64                         `json:"total"`
	Collected decimal.Decimal               `json:"collected"`
}

func (s *Store) DealerStats(ctx context.Context, dealerID uint) (DealerStats, error) {
	var rows []struct {
		Status model.BookingStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Select("status, count(*) as n").
		Where("dealer_id = ?", dealerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return DealerStats{}, err
	}

	var paid []decimal.Decimal
	err = s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("dealer_id = ?", dealerID).
		Pluck("paid_amount", &paid).Error
	if err != nil {
		return DealerStats{}, err
	}

	out := DealerStats{
		DealerID:  dealerID,
		ByStatus:  make(map[model.BookingStatus]int64, len(rows)),
		Collected: decimal.Zero,
	}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.N
		out.Total += r.N
	}
	for _, p := range paid {
		out.Collected = out.Collected.Add(p)
	}
	return out, nil
}

func (s *Store) History(ctx context.Context, bookingID string) ([]model.BookingHistory, error) {
	var list []model.BookingHistory
	err := s.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("occurred_at ASC, id ASC").
		Find(&list).Error
	return list, err
}
