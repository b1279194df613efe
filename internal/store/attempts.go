package store

import (
	"context"
	"errors"
	"time"

	"bike_booking/internal/model"

	"gorm.io/gorm"
)

func (s *Store) CreateAttempt(ctx context.Context, a *model.PaymentAttempt) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// UnresolvedAttempt returns the newest INITIATED or CREATED attempt of a booking.
func (s *Store) UnresolvedAttempt(ctx context.Context, bookingID string) (*model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND status IN ?", bookingID,
			[]model.PaymentAttemptStatus{model.AttemptInitiated, model.AttemptCreated}).
		Order("created_at DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AttemptByOrderRef(ctx context.Context, orderRef string) (*model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	err := s.db.WithContext(ctx).Where("order_reference = ?", orderRef).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAttemptOrder records the gateway order reference.
func (s *Store) SetAttemptOrder(ctx context.Context, id, orderRef string) error {
	return s.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"order_reference": orderRef,
			"status":          model.AttemptCreated,
		}).Error
}

// MarkAttemptPaid consumes an attempt that has a gateway order (CREATED, or
// EXPIRED after the sweep). It reports false when the attempt was already
// consumed, which makes confirmation replays no-ops.
func (s *Store) MarkAttemptPaid(ctx context.Context, id, paymentRef string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("id = ? AND status IN ?", id,
			[]model.PaymentAttemptStatus{model.AttemptCreated, model.AttemptExpired}).
		Updates(map[string]any{
			"status":            model.AttemptPaid,
			"payment_reference": paymentRef,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AbandonAttempt discards an unresolved attempt.
func (s *Store) AbandonAttempt(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("id = ? AND status IN ?", id,
			[]model.PaymentAttemptStatus{model.AttemptInitiated, model.AttemptCreated}).
		Update("status", model.AttemptAbandoned)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExpireAttempts marks unresolved attempts created before cutoff as EXPIRED.
// Expired attempts are never reused but stay creditable if the gateway
// verifies a payment on them.
func (s *Store) ExpireAttempts(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("status IN ? AND created_at < ?",
			[]model.PaymentAttemptStatus{model.AttemptInitiated, model.AttemptCreated}, cutoff).
		Update("status", model.AttemptExpired)
	return res.RowsAffected, res.Error
}
