package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	rediskey "bike_booking/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit is a sliding-window limiter over a sorted set.
// KEYS[1]=key, ARGV = now, windowStart, windowSec, member, limit.
// Returns the count inside the window, or -1 when the request is refused.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// PaymentRateLimit limits payment calls per booking, falling back to the
// client IP when the body names no booking. Redis errors let the request
// through.
func PaymentRateLimit(rdb *rd.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var key string
		if bookingID := extractBookingID(c); bookingID != "" {
			key = rediskey.PayRateLimitKey(bookingID)
		} else {
			key = rediskey.PayRateLimitIPKey(c.ClientIP())
		}

		now := time.Now()
		windowSec := int64(window.Seconds())
		member := fmt.Sprintf("%d-%s", now.UnixNano(), GetRequestID(c))

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.Unix(), now.Unix()-windowSec, windowSec, member, limit).Int()
		if err != nil {
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"kind": "RATE_LIMITED",
				"msg":  "too many payment requests, retry later",
			})
			return
		}
		c.Next()
	}
}

// extractBookingID peeks at the JSON body and puts it back for the handler.
func extractBookingID(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var req struct {
		BookingID string `json:"booking_id"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return ""
	}
	return req.BookingID
}
