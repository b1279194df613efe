package router

import (
	"time"

	"bike_booking/internal/booking"
	"bike_booking/internal/payment"
	rediskey "bike_booking/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const webhookSeenTTL = 24 * time.Hour

func startPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BookingID string `json:"booking_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		order, err := d.Service.StartPayment(c.Request.Context(), req.BookingID)
		if err != nil {
			fail(c, d, err)
			return
		}
		// key_id and currency are what the checkout widget needs.
		ok(c, gin.H{
			"order":    order,
			"key_id":   d.Config.GatewayKeyID,
			"currency": d.Config.Currency,
		})
	}
}

type confirmationRequest struct {
	payment.Verification
	Amount decimal.Decimal `json:"amount"`
}

func (r confirmationRequest) validate() string {
	switch {
	case r.BookingID == "":
		return "booking_id is required"
	case r.OrderReference == "" || r.PaymentReference == "" || r.Signature == "":
		return "order_ref, payment_ref and signature are required"
	}
	return ""
}

func verifyPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if msg := req.validate(); msg != "" {
			badRequest(c, msg)
			return
		}
		v, err := d.Service.ApplyPayment(c.Request.Context(), req.BookingID, req.Amount, req.Verification)
		if err != nil {
			fail(c, d, err)
			return
		}
		ok(c, v)
	}
}

// paymentWebhook is the provider's server-to-server confirmation. Each
// delivery id is processed once; a delivery that failed for a retryable
// reason is released so the provider's retry gets through.
func paymentWebhook(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		deliveryID := c.GetHeader("X-Webhook-Id")
		if deliveryID == "" {
			badRequest(c, "X-Webhook-Id header is required")
			return
		}
		var req confirmationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if msg := req.validate(); msg != "" {
			badRequest(c, msg)
			return
		}

		ctx := c.Request.Context()
		key := rediskey.WebhookSeenKey(deliveryID)
		if d.Redis != nil {
			first, err := rediskey.MarkOnce(ctx, d.Redis, key, webhookSeenTTL)
			if err != nil {
				d.Logger.WithError(err).Warn("webhook dedupe unavailable")
			} else if !first {
				ok(c, gin.H{"duplicate": true})
				return
			}
		}

		v, err := d.Service.ApplyPayment(ctx, req.BookingID, req.Amount, req.Verification)
		if err != nil {
			kind := booking.KindOf(err)
			if d.Redis != nil && (booking.Retryable(err) || kind == booking.KindInternal) {
				if uerr := rediskey.Unmark(ctx, d.Redis, key); uerr != nil {
					d.Logger.WithError(uerr).Warn("webhook unmark")
				}
			}
			fail(c, d, err)
			return
		}
		ok(c, v)
	}
}

func abandonPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Service.AbandonPayment(c.Request.Context(), c.Param("order_ref")); err != nil {
			fail(c, d, err)
			return
		}
		ok(c, gin.H{"order_ref": c.Param("order_ref"), "status": "ABANDONED"})
	}
}
