package router

import (
	"bike_booking/internal/inventory"
	"bike_booking/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func createCustomer(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string `json:"name" binding:"required"`
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cust := &model.Customer{Name: req.Name, Email: req.Email}
		if err := d.Directory.CreateCustomer(c.Request.Context(), cust); err != nil {
			fail(c, d, err)
			return
		}
		created(c, cust)
	}
}

func createDealer(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
			City string `json:"city"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		dl := &model.Dealer{Name: req.Name, City: req.City}
		if err := d.Directory.CreateDealer(c.Request.Context(), dl); err != nil {
			fail(c, d, err)
			return
		}
		created(c, dl)
	}
}

func createBike(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name      string          `json:"name" binding:"required"`
			Brand     string          `json:"brand" binding:"required"`
			Type      string          `json:"type"`
			BasePrice decimal.Decimal `json:"base_price"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if !req.BasePrice.IsPositive() {
			badRequest(c, "base_price must be > 0")
			return
		}
		b := &model.Bike{Name: req.Name, Brand: req.Brand, Type: req.Type, BasePrice: req.BasePrice.Round(2)}
		if err := d.Directory.CreateBike(c.Request.Context(), b); err != nil {
			fail(c, d, err)
			return
		}
		created(c, b)
	}
}

func verifyDealer(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerID, valid := idParam(c, "dealer_id")
		if !valid {
			return
		}
		dl, err := d.Directory.VerifyDealer(c.Request.Context(), dealerID)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, dl)
	}
}

func upsertListing(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerID, valid := idParam(c, "dealer_id")
		if !valid {
			return
		}
		bikeID, valid := idParam(c, "bike_id")
		if !valid {
			return
		}
		var req struct {
			Price decimal.Decimal `json:"price"`
			Stock *int64          `json:"stock" binding:"required"`
			Offer string          `json:"offer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if !req.Price.IsPositive() || *req.Stock < 0 {
			badRequest(c, "price must be > 0 and stock >= 0")
			return
		}

		ctx := c.Request.Context()
		if _, err := d.Directory.Dealer(ctx, dealerID); err != nil {
			fail(c, d, err)
			return
		}
		if _, err := d.Directory.Bike(ctx, bikeID); err != nil {
			fail(c, d, err)
			return
		}
		li, err := d.Ledger.Upsert(ctx, inventory.ListingInput{
			DealerID: dealerID,
			BikeID:   bikeID,
			Price:    req.Price,
			Stock:    *req.Stock,
			Offer:    req.Offer,
		})
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, li)
	}
}

func dealerInventory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerID, valid := idParam(c, "dealer_id")
		if !valid {
			return
		}
		list, err := d.Ledger.DealerInventory(c.Request.Context(), dealerID)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, list)
	}
}

func dealersForBike(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		bikeID, valid := idParam(c, "bike_id")
		if !valid {
			return
		}
		list, err := d.Ledger.DealersForBike(c.Request.Context(), bikeID)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, list)
	}
}
