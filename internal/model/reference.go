package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is the minimum needed to resolve a booking's customer reference.
type Customer struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"size:128;not null" json:"name"`
	Email string `gorm:"size:255;uniqueIndex;not null" json:"email"`
}

func (Customer) TableName() string { return "customers" }

// Dealer can only take bookings once an admin has verified it.
type Dealer struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:128;not null" json:"name"`
	City     string `gorm:"size:64" json:"city"`
	Verified bool   `gorm:"not null;default:false" json:"verified"`
}

func (Dealer) TableName() string { return "dealers" }

// Bike is a master catalog model; dealers list it with their own price.
type Bike struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string          `gorm:"size:128;not null" json:"name"`
	Brand     string          `gorm:"size:64;not null" json:"brand"`
	Type      string          `gorm:"size:32" json:"type"`
	BasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
}

func (Bike) TableName() string { return "bikes" }
