// Package pricerange tallies purchases into fixed price buckets.
package pricerange

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"mall-dashboard/internal/models"
)

// Unknown is returned for prices no bucket accepts (negative amounts).
const Unknown = "Unknown"

// Bucket accepts Min ≤ price ≤ Max. A zero Max means unbounded.
type Bucket struct {
	Min   int64
	Max   int64
	Label string
}

func (b Bucket) Contains(price decimal.Decimal) bool {
	if price.LessThan(decimal.NewFromInt(b.Min)) {
		return false
	}
	return b.below(price)
}

func (b Bucket) below(price decimal.Decimal) bool {
	return b.Max == 0 || price.LessThanOrEqual(decimal.NewFromInt(b.Max))
}

// Buckets is ordered; Classify takes the first match.
var Buckets = []Bucket{
	{Min: 0, Max: 20000, Label: "≤2만원"},
	{Min: 20001, Max: 30000, Label: "2만원대"},
	{Min: 30001, Max: 40000, Label: "3만원대"},
	{Min: 40001, Max: 50000, Label: "4만원대"},
	{Min: 50001, Max: 60000, Label: "5만원대"},
	{Min: 60001, Max: 70000, Label: "6만원대"},
	{Min: 70001, Max: 80000, Label: "7만원대"},
	{Min: 80001, Max: 90000, Label: "8만원대"},
	{Min: 90001, Max: 100000, Label: "9만원대"},
	{Min: 100001, Label: "10만원 이상"},
}

// Classify returns the label of the first bucket holding price.
//
// Buckets are matched on their upper bound in table order, so a fractional
// price such as 20000.5 lands in "2만원대" rather than falling between bands.
func Classify(price decimal.Decimal) string {
	if price.IsNegative() {
		return Unknown
	}
	for _, b := range Buckets {
		if b.below(price) {
			return b.Label
		}
	}
	return Unknown
}

// Aggregate counts prices per bucket. Every bucket is present, in table order,
// with zero counts where nothing matched.
func Aggregate(prices []decimal.Decimal) []models.PriceFrequency {
	counts := make(map[string]int, len(Buckets))
	for _, p := range prices {
		counts[Classify(p)]++
	}

	out := make([]models.PriceFrequency, len(Buckets))
	for i, b := range Buckets {
		out[i] = models.PriceFrequency{Range: b.Label, Count: counts[b.Label]}
	}
	return out
}

// FormatRange turns a raw "min - max" range, as some API versions send it,
// into a bucket label. Input that does not look like a range is returned as is.
func FormatRange(raw string) string {
	lo, hi, found := strings.Cut(raw, "-")
	if !found {
		return raw
	}
	lower, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return raw
	}
	upper, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		// open-ended "100001 -"
		if strings.TrimSpace(hi) == "" && lower > 100000 {
			return Buckets[len(Buckets)-1].Label
		}
		return raw
	}

	switch {
	case lower == 0 && upper <= 20000:
		return Buckets[0].Label
	case upper > 100000:
		return Buckets[len(Buckets)-1].Label
	default:
		return strconv.FormatInt(lower/10000, 10) + "만원대"
	}
}

// Normalize applies FormatRange to every entry.
func Normalize(freq []models.PriceFrequency) []models.PriceFrequency {
	out := make([]models.PriceFrequency, len(freq))
	for i, f := range freq {
		out[i] = models.PriceFrequency{Range: FormatRange(f.Range), Count: f.Count}
	}
	return out
}
