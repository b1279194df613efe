package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOutOfStock      = errors.New("out of stock")
	ErrListingNotFound = errors.New("listing not found")
)

// Ledger owns dealer listings. Stock only moves through DecrementStock and
// RestoreStock, both of which accept the caller's transaction.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return l.db
}

// GetListing returns the dealer's current price and stock for a bike.
func (l *Ledger) GetListing(ctx context.Context, tx *gorm.DB, dealerID, bikeID uint) (*model.Listing, error) {
	var li model.Listing
	err := l.conn(tx).WithContext(ctx).
		Where("dealer_id = ? AND bike_id = ?", dealerID, bikeID).
		First(&li).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &li, nil
}

// DecrementStock takes one unit in a single conditional UPDATE, so two
// concurrent callers can never both take the last unit.
func (l *Ledger) DecrementStock(ctx context.Context, tx *gorm.DB, dealerID, bikeID uint) error {
	db := l.conn(tx).WithContext(ctx)
	res := db.Model(&model.Listing{}).
		Where("dealer_id = ? AND bike_id = ? AND stock > 0", dealerID, bikeID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", 1),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("decrement stock: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := db.Model(&model.Listing{}).
		Where("dealer_id = ? AND bike_id = ?", dealerID, bikeID).
		Count(&n).Error; err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if n == 0 {
		return ErrListingNotFound
	}
	return ErrOutOfStock
}

// RestoreStock puts one unit back.
func (l *Ledger) RestoreStock(ctx context.Context, tx *gorm.DB, dealerID, bikeID uint) error {
	res := l.conn(tx).WithContext(ctx).Model(&model.Listing{}).
		Where("dealer_id = ? AND bike_id = ?", dealerID, bikeID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", 1),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("restore stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrListingNotFound
	}
	return nil
}

// ListingInput is what a dealer edits in the inventory grid.
type ListingInput struct {
	DealerID uint
	BikeID   uint
	Price    decimal.Decimal
	Stock    int64
	Offer    string
}

// Upsert creates or replaces a dealer's listing for a bike.
func (l *Ledger) Upsert(ctx context.Context, in ListingInput) (*model.Listing, error) {
	if in.Stock < 0 {
		return nil, fmt.Errorf("stock must be >= 0")
	}
	if !in.Price.IsPositive() {
		return nil, fmt.Errorf("price must be > 0")
	}
	li := &model.Listing{
		DealerID: in.DealerID,
		BikeID:   in.BikeID,
		Price:    in.Price.Round(2),
		Stock:    in.Stock,
		Offer:    in.Offer,
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dealer_id"}, {Name: "bike_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "stock", "offer", "updated_at"}),
	}).Create(li).Error
	if err != nil {
		return nil, fmt.Errorf("upsert listing: %w", err)
	}
	return l.GetListing(ctx, nil, in.DealerID, in.BikeID)
}

// DealerInventory lists everything a dealer has listed.
func (l *Ledger) DealerInventory(ctx context.Context, dealerID uint) ([]model.Listing, error) {
	var list []model.Listing
	err := l.db.WithContext(ctx).Where("dealer_id = ?", dealerID).Order("bike_id").Find(&list).Error
	return list, err
}

// DealersForBike lists every dealer offer for a bike, cheapest first.
func (l *Ledger) DealersForBike(ctx context.Context, bikeID uint) ([]model.Listing, error) {
	var list []model.Listing
	err := l.db.WithContext(ctx).Where("bike_id = ?", bikeID).Order("price ASC, dealer_id ASC").Find(&list).Error
	return list, err
}
