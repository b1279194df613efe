package catalog

import (
	"context"
	"errors"
	"fmt"

	"bike_booking/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUnknownCustomer  = errors.New("customer not found")
	ErrUnknownDealer    = errors.New("dealer not found")
	ErrDealerUnverified = errors.New("dealer not verified")
	ErrUnknownBike      = errors.New("bike not found")
)

// Directory resolves the foreign references a booking points at.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return d.db.WithContext(ctx).Create(c).Error
}

func (d *Directory) CreateDealer(ctx context.Context, dl *model.Dealer) error {
	return d.db.WithContext(ctx).Create(dl).Error
}

func (d *Directory) CreateBike(ctx context.Context, b *model.Bike) error {
	return d.db.WithContext(ctx).Create(b).Error
}

// VerifyDealer lets a dealer start taking bookings.
func (d *Directory) VerifyDealer(ctx context.Context, dealerID uint) (*model.Dealer, error) {
	res := d.db.WithContext(ctx).Model(&model.Dealer{}).Where("id = ?", dealerID).Update("verified", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUnknownDealer
	}
	var dl model.Dealer
	if err := d.db.WithContext(ctx).First(&dl, dealerID).Error; err != nil {
		return nil, err
	}
	return &dl, nil
}

func (d *Directory) Dealer(ctx context.Context, dealerID uint) (*model.Dealer, error) {
	var dl model.Dealer
	err := d.db.WithContext(ctx).First(&dl, dealerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownDealer
	}
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

func (d *Directory) Bike(ctx context.Context, bikeID uint) (*model.Bike, error) {
	var b model.Bike
	err := d.db.WithContext(ctx).First(&b, bikeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownBike
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Resolve checks that all three references exist and that the dealer is
// verified. The first failing reference is reported.
func (d *Directory) Resolve(ctx context.Context, customerID, dealerID, bikeID uint) error {
	db := d.db.WithContext(ctx)

	if err := exists(db, &model.Customer{}, customerID, ErrUnknownCustomer); err != nil {
		return err
	}

	if dealerID == 0 {
		return ErrUnknownDealer
	}
	dl, err := d.Dealer(ctx, dealerID)
	if err != nil {
		if errors.Is(err, ErrUnknownDealer) {
			return err
		}
		return fmt.Errorf("load dealer: %w", err)
	}
	if !dl.Verified {
		return ErrDealerUnverified
	}

	return exists(db, &model.Bike{}, bikeID, ErrUnknownBike)
}

func exists(db *gorm.DB, m any, id uint, notFound error) error {
	if id == 0 {
		return notFound
	}
	var n int64
	if err := db.Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
