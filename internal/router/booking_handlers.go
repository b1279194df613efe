package router

import (
	"bike_booking/internal/booking"
	"bike_booking/internal/model"

	"github.com/gin-gonic/gin"
)

type draftRequest struct {
	CustomerID            uint                `json:"customer_id"`
	DealerID              uint                `json:"dealer_id"`
	BikeID                uint                `json:"bike_id"`
	PaymentOption         model.PaymentOption `json:"payment_option"`
	RequestedDeliveryDate string              `json:"requested_delivery_date"`
}

func (r draftRequest) draft() (booking.Draft, error) {
	d := booking.Draft{
		CustomerID:    r.CustomerID,
		DealerID:      r.DealerID,
		BikeID:        r.BikeID,
		PaymentOption: r.PaymentOption,
	}
	if r.RequestedDeliveryDate != "" {
		t, err := parseDate(r.RequestedDeliveryDate)
		if err != nil {
			return booking.Draft{}, err
		}
		d.RequestedDeliveryDate = &t
	}
	return d, nil
}

func bindDraft(c *gin.Context) (booking.Draft, bool) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return booking.Draft{}, false
	}
	d, err := req.draft()
	if err != nil {
		badRequest(c, "requested_delivery_date must be YYYY-MM-DD or RFC3339")
		return booking.Draft{}, false
	}
	return d, true
}

func quote(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, valid := bindDraft(c)
		if !valid {
			return
		}
		q, err := d.Service.Quote(c.Request.Context(), draft)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, q)
	}
}

func createBooking(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		draft, valid := bindDraft(c)
		if !valid {
			return
		}
		v, err := d.Service.CreateBooking(c.Request.Context(), draft)
		if err != nil {
			fail(c, d, err)
			return
		}
		created(c, v)
	}
}

func listBookings(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		customerID, valid := idQuery(c, "customer_id")
		if !valid {
			return
		}
		dealerID, valid := idQuery(c, "dealer_id")
		if !valid {
			return
		}
		list, err := d.Service.ListBookings(c.Request.Context(), booking.ListFilter{
			CustomerID: customerID,
			DealerID:   dealerID,
			Status:     model.BookingStatus(c.Query("status")),
		})
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, list)
	}
}

func getBooking(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := d.Service.GetBooking(c.Request.Context(), c.Param("booking_id"))
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, v)
	}
}

func bookingHistory(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Service.History(c.Request.Context(), c.Param("booking_id"))
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, list)
	}
}

func acceptBooking(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DeliveryDate string `json:"delivery_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		date, err := parseDate(req.DeliveryDate)
		if err != nil {
			badRequest(c, "delivery_date must be YYYY-MM-DD or RFC3339")
			return
		}
		v, err := d.Service.AcceptBooking(c.Request.Context(), c.Param("booking_id"), date)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, v)
	}
}

func simpleTransition(d Deps, op func(c *gin.Context, id string) (booking.View, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := op(c, c.Param("booking_id"))
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, v)
	}
}

func rejectBooking(d Deps) gin.HandlerFunc {
	return simpleTransition(d, func(c *gin.Context, id string) (booking.View, error) {
		return d.Service.RejectBooking(c.Request.Context(), id)
	})
}

func cancelBooking(d Deps) gin.HandlerFunc {
	return simpleTransition(d, func(c *gin.Context, id string) (booking.View, error) {
		return d.Service.CancelBooking(c.Request.Context(), id)
	})
}

func deliverBooking(d Deps) gin.HandlerFunc {
	return simpleTransition(d, func(c *gin.Context, id string) (booking.View, error) {
		return d.Service.DeliverBooking(c.Request.Context(), id)
	})
}

func pendingBookings(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerID, valid := idParam(c, "dealer_id")
		if !valid {
			return
		}
		list, err := d.Service.PendingBookings(c.Request.Context(), dealerID)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, list)
	}
}

func dealerStats(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealerID, valid := idParam(c, "dealer_id")
		if !valid {
			return
		}
		st, err := d.Service.DealerStats(c.Request.Context(), dealerID)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, st)
	}
}
