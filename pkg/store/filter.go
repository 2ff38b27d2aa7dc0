package store

import (
	"strconv"
	"strings"
)

// Matches reports whether a restaurant satisfies every set field of the
// filter. Absent fields widen the match; string comparisons fold case.
func (f SearchFilter) Matches(r Restaurant) bool {
	if f.Country != "" && !strings.EqualFold(f.Country, r.Country) {
		return false
	}
	if f.City != "" && !strings.EqualFold(f.City, r.City) {
		return false
	}
	if f.Cuisine != "" && !strings.EqualFold(f.Cuisine, r.Cuisine) {
		return false
	}
	if f.PriceTier != "" && !priceInTier(r.Price, f.PriceTier) {
		return false
	}
	if f.Delivery != nil && r.Delivery != *f.Delivery {
		return false
	}
	if f.Online != nil && r.Online != *f.Online {
		return false
	}
	return true
}

// priceInTier evaluates the tier labels used by clients ("<10", "10-15",
// "15-20", ">20"). A bare number is treated as an inclusive ceiling. An
// unparsable tier matches nothing.
func priceInTier(price float64, tier string) bool {
	tier = strings.TrimSpace(tier)

	switch {
	case strings.HasPrefix(tier, "<"):
		max, err := strconv.ParseFloat(strings.TrimSpace(tier[1:]), 64)
		return err == nil && price < max

	case strings.HasPrefix(tier, ">"):
		min, err := strconv.ParseFloat(strings.TrimSpace(tier[1:]), 64)
		return err == nil && price > min

	case strings.Contains(tier, "-"):
		parts := strings.SplitN(tier, "-", 2)
		lo, errLo := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, errHi := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		return errLo == nil && errHi == nil && price >= lo && price <= hi

	default:
		max, err := strconv.ParseFloat(tier, 64)
		return err == nil && price <= max
	}
}
