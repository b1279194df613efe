package booking

import (
	"bike_booking/internal/model"

	"github.com/shopspring/decimal"
)

// AdvanceFraction is the share of the total due up front with ADVANCE.
var AdvanceFraction = decimal.NewFromFloat(0.20)

// MoneyPlaces is the number of fractional digits in the smallest currency unit.
const MoneyPlaces = 2

// ComputeInitialPayable returns the first amount the customer pays.
// The advance is rounded half-up to the smallest currency unit.
func ComputeInitialPayable(b model.Booking) decimal.Decimal {
	if b.PaymentOption == model.PaymentAdvance {
		return b.TotalAmount.Mul(AdvanceFraction).Round(MoneyPlaces)
	}
	return b.TotalAmount
}

// payableNow is what StartPayment charges: the initial installment while
// nothing is paid and the dealer has not decided yet, the whole balance once
// accepted.
func payableNow(b model.Booking) (decimal.Decimal, error) {
	switch {
	case b.Status == model.BookingPending && b.PaidAmount.IsZero():
		return ComputeInitialPayable(b), nil
	case b.Status == model.BookingAccepted && b.Remaining().IsPositive():
		return b.Remaining(), nil
	}
	return decimal.Zero, newError(KindInvalidState, "booking has nothing payable in status "+string(b.Status), nil)
}

// acceptsPayment mirrors payableNow for the credit side.
func acceptsPayment(b model.Booking) bool {
	return (b.Status == model.BookingPending && b.PaidAmount.IsZero()) ||
		(b.Status == model.BookingAccepted && b.Remaining().IsPositive())
}
