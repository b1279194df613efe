package router

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bike_booking/internal/booking"
	"bike_booking/internal/catalog"
	"bike_booking/internal/config"
	"bike_booking/internal/inventory"
	"bike_booking/internal/middleware"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deps wires the HTTP layer. Redis is optional: without it payment routes
// are not rate limited and webhooks are not de-duplicated.
type Deps struct {
	Service   *booking.Service
	Directory *catalog.Directory
	Ledger    *inventory.Ledger
	Redis     *rd.Client
	Config    config.AppConfig
	Logger    *logrus.Logger
}

// Setup registers every route.
func Setup(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api")

	// Reference data
	api.POST("/customers", createCustomer(d))
	api.POST("/dealers", createDealer(d))
	api.POST("/bikes", createBike(d))
	api.POST("/admin/dealers/:dealer_id/verify", middleware.AdminToken(d.Config.AdminToken), verifyDealer(d))

	// Inventory
	api.PUT("/dealers/:dealer_id/inventory/:bike_id", upsertListing(d))
	api.GET("/dealers/:dealer_id/inventory", dealerInventory(d))
	api.GET("/bikes/:bike_id/dealers", dealersForBike(d))

	// Bookings
	api.POST("/bookings/quote", quote(d))
	api.POST("/bookings", createBooking(d))
	api.GET("/bookings", listBookings(d))
	api.GET("/bookings/:booking_id", getBooking(d))
	api.GET("/bookings/:booking_id/history", bookingHistory(d))
	api.POST("/bookings/:booking_id/accept", acceptBooking(d))
	api.POST("/bookings/:booking_id/reject", rejectBooking(d))
	api.POST("/bookings/:booking_id/cancel", cancelBooking(d))
	api.POST("/bookings/:booking_id/deliver", deliverBooking(d))
	api.GET("/dealers/:dealer_id/bookings/pending", pendingBookings(d))
	api.GET("/dealers/:dealer_id/stats", dealerStats(d))

	// Payments
	pay := api.Group("/payments")
	if d.Redis != nil {
		limit := middleware.PaymentRateLimit(d.Redis, d.Config.PayRateLimit, d.Config.PayRateWindow)
		pay.POST("/orders", limit, startPayment(d))
		pay.POST("/verify", limit, verifyPayment(d))
	} else {
		pay.POST("/orders", startPayment(d))
		pay.POST("/verify", verifyPayment(d))
	}
	pay.POST("/webhook", paymentWebhook(d))
	pay.POST("/orders/:order_ref/abandon", abandonPayment(d))
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"code": 0, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "kind": booking.KindInvalidInput, "msg": msg})
}

var statusByKind = map[booking.Kind]int{
	booking.KindInvalidReference:         http.StatusBadRequest,
	booking.KindInvalidInput:             http.StatusBadRequest,
	booking.KindAmountMismatch:           http.StatusBadRequest,
	booking.KindVerificationFailed:       http.StatusPaymentRequired,
	booking.KindNotFound:                 http.StatusNotFound,
	booking.KindInvalidState:             http.StatusConflict,
	booking.KindOutOfStock:               http.StatusConflict,
	booking.KindCancellationWindowClosed: http.StatusConflict,
	booking.KindBusy:                     http.StatusConflict,
	booking.KindGatewayUnavailable:       http.StatusServiceUnavailable,
}

// fail writes the error envelope. Internal details are logged, not returned.
func fail(c *gin.Context, d Deps, err error) {
	err = classify(err)
	kind := booking.KindOf(err)
	status, known := statusByKind[kind]
	if !known {
		status = http.StatusInternalServerError
	}

	msg := "internal error"
	var be *booking.Error
	if kind != booking.KindInternal && errors.As(err, &be) && be.Msg != "" {
		msg = be.Msg
	}
	if status >= http.StatusInternalServerError {
		d.Logger.WithError(err).WithField("request_id", middleware.GetRequestID(c)).Error("request failed")
	}
	c.JSON(status, gin.H{"code": status, "kind": kind, "msg": msg})
}

// classify gives a kind to errors that come straight from the catalog or
// the inventory ledger.
func classify(err error) error {
	var be *booking.Error
	switch {
	case errors.As(err, &be):
		return err
	case errors.Is(err, catalog.ErrUnknownDealer), errors.Is(err, catalog.ErrUnknownBike),
		errors.Is(err, catalog.ErrUnknownCustomer), errors.Is(err, inventory.ErrListingNotFound):
		return &booking.Error{Kind: booking.KindNotFound, Msg: err.Error()}
	case errors.Is(err, inventory.ErrOutOfStock):
		return &booking.Error{Kind: booking.KindOutOfStock, Msg: err.Error()}
	case errorsLikeUnique(err):
		return &booking.Error{Kind: booking.KindInvalidInput, Msg: "already exists"}
	}
	return err
}

func errorsLikeUnique(err error) bool {
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func idQuery(c *gin.Context, name string) (uint, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts a calendar date (YYYY-MM-DD, taken as UTC midnight)
// or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
