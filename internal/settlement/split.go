package settlement

import "github.com/shopspring/decimal"

const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// Breakdown is the division of one paid fee. PlatformFee + DriverShare + OwnerShare
// always equals Amount exactly.
type Breakdown struct {
	Amount      decimal.Decimal `json:"amount"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	Remaining   decimal.Decimal `json:"remaining"`
	DriverShare decimal.Decimal `json:"driver_share"`
	OwnerShare  decimal.Decimal `json:"owner_share"`
}

// Split divides amount into platform fee, driver share and owner share. Percentages
// are applied with half-up rounding to two decimals; the owner receives whatever is
// left so no cent is created or lost.
func Split(amount, feePercent, driverPercent decimal.Decimal) Breakdown {
	fee := percentOf(amount, feePercent)
	remaining := amount.Sub(fee)
	driver := percentOf(remaining, driverPercent)
	return Breakdown{
		Amount:      amount,
		PlatformFee: fee,
		Remaining:   remaining,
		DriverShare: driver,
		OwnerShare:  remaining.Sub(driver),
	}
}

// decimal.Round rounds half away from zero, which is half-up for non-negative money.
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(moneyScale)
}
