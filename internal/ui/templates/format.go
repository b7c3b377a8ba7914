package templates

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mall-dashboard/internal/models"
)

var printer = message.NewPrinter(language.Korean)

// Won formats an amount as whole won with digit grouping, e.g. "1,234,000원".
func Won(amount decimal.Decimal) string {
	return printer.Sprintf("%d원", amount.Round(0).IntPart())
}

// Number groups digits the Korean way.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Bar is one column of the frequency chart.
type Bar struct {
	Label   string
	Count   int
	Percent int
}

// Bars scales counts against the largest one. An all-zero chart has flat bars.
func Bars(freq []models.PriceFrequency) []Bar {
	peak := 0
	for _, f := range freq {
		peak = max(peak, f.Count)
	}
	bars := make([]Bar, 0, len(freq))
	for _, f := range freq {
		b := Bar{Label: f.Range, Count: f.Count}
		if peak > 0 {
			b.Percent = f.Count * 100 / peak
		}
		bars = append(bars, b)
	}
	return bars
}
