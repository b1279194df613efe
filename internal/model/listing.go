package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is a dealer's stock and price for one bike model. Prices are
// per dealer and independent of any other dealer's price for the same bike.
type Listing struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DealerID uint            `gorm:"not null;uniqueIndex:idx_listing_dealer_bike" json:"dealer_id"`
	BikeID   uint            `gorm:"not null;uniqueIndex:idx_listing_dealer_bike;index" json:"bike_id"`
	Stock    int64           `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Offer    string          `gorm:"size:255" json:"offer,omitempty"`
}

func (Listing) TableName() string { return "listings" }
