package ledger

// TierRate returns the commission rate for a referrer with the given
// number of distinct validated buyers, inclusive of the purchase being
// validated. Earlier credits keep their historical rate; the bracket
// only ever escalates as the count grows.
func TierRate(validatedBuyers int64) float64 {
	switch {
	case validatedBuyers >= 100:
		return 0.40
	case validatedBuyers >= 50:
		return 0.30
	default:
		return 0.20
	}
}

// CreditAmount converts a rate into whole currency units. Truncation,
// not rounding: 10000 * 0.30 credits 3000, 9999 * 0.20 credits 1999.
func CreditAmount(productPrice int64, rate float64) int64 {
	return int64(float64(productPrice) * rate)
}
