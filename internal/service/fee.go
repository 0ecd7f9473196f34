package service

import "github.com/shopspring/decimal"

// SplitFee divides total into the platform fee (rate * total, rounded to cents)
// and the seller's net amount. fee + net always equals total.
func SplitFee(total, rate decimal.Decimal) (fee, net decimal.Decimal) {
	fee = total.Mul(rate).Round(2)
	net = total.Sub(fee)
	return fee, net
}
