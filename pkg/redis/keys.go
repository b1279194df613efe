package redis

import "fmt"

// BookingLockKey serializes transitions of one booking.
func BookingLockKey(bookingID string) string {
	return fmt.Sprintf("bike_booking:lock:booking:%s", bookingID)
}

// WebhookSeenKey marks a gateway webhook delivery as processed.
func WebhookSeenKey(deliveryID string) string {
	return fmt.Sprintf("bike_booking:webhook:seen:%s", deliveryID)
}

// PayRateLimitKey scopes the payment rate limit to a booking.
func PayRateLimitKey(bookingID string) string {
	return fmt.Sprintf("rate_limit:payments:booking:%s", bookingID)
}

// PayRateLimitIPKey is the fallback scope when no booking id is present.
func PayRateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:payments:ip:%s", ip)
}
