package bookings

import (
	"github.com/shopspring/decimal"

	"github.com/rentaride/rentaride-backend/pkg/types"
)

var (
	// serviceFee is the flat platform fee in NPR baked into every total.
	serviceFee = decimal.NewFromInt(100)
	// taxRate is applied to the amount net of the service fee.
	taxRate = decimal.NewFromFloat(0.13)
)

// DerivePricing reconstructs a pricing breakdown from a bare total. The
// reverse derivation is lossy in general, so it is only used as a fallback
// when a transaction predates the stored breakdown; it must stay
// deterministic so repeated materialization of the same transaction agrees.
//
//	taxes     = round2(taxRate * (total - serviceFee))
//	basePrice = total - serviceFee - taxes
func DerivePricing(totalAmount decimal.Decimal) types.PricingBreakdown {
	if totalAmount.LessThanOrEqual(serviceFee) {
		return types.PricingBreakdown{
			BasePrice:   decimal.Zero,
			ServiceFee:  totalAmount,
			Taxes:       decimal.Zero,
			TotalAmount: totalAmount,
		}
	}

	net := totalAmount.Sub(serviceFee)
	taxes := net.Mul(taxRate).Round(2)
	base := net.Sub(taxes)

	return types.PricingBreakdown{
		BasePrice:   base,
		ServiceFee:  serviceFee,
		Taxes:       taxes,
		TotalAmount: totalAmount,
	}
}

// PriceRental computes the forward breakdown at initiation time from the
// vehicle's day rate and the rental duration.
func PriceRental(pricePerDay decimal.Decimal, durationDays int) types.PricingBreakdown {
	if durationDays < 1 {
		durationDays = 1
	}
	base := pricePerDay.Mul(decimal.NewFromInt(int64(durationDays))).Round(2)
	taxes := base.Mul(taxRate).Round(2)
	return types.PricingBreakdown{
		BasePrice:   base,
		ServiceFee:  serviceFee,
		Taxes:       taxes,
		TotalAmount: base.Add(serviceFee).Add(taxes),
	}
}
