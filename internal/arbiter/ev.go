package arbiter

// ExpectedValue computes the revenue-risk-adjusted value of an offer:
// p_buy × price × margin. Negative inputs are treated as zero so the
// result is never negative.
func ExpectedValue(pBuy, price, margin float64) float64 {
	if pBuy < 0 {
		pBuy = 0
	}
	if price < 0 {
		price = 0
	}
	if margin < 0 {
		margin = 0
	}
	return pBuy * price * margin
}

// Reprice updates the option's base price and recomputes its expected
// value, returning the adjusted copy.
func (o OfferOption) Reprice(price float64) OfferOption {
	o.BasePrice = price
	o.ExpectedValue = ExpectedValue(o.PBuy, price, o.Margin)
	return o
}
