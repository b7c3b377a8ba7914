// Package daterange holds the purchase-frequency date filter.
//
// Dates are plain calendar days (YYYY-MM-DD). They are only widened to
// timestamps when a request is built: the start of the first day and the last
// millisecond of the last day, in the caller's location.
package daterange

import (
	"fmt"
	"net/url"
	"time"

	"mall-dashboard/internal/urlstate"
)

// isoMillis is the timestamp layout sent to the API (UTC, millisecond precision).
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const defaultText = "2024년 7월 분석"

type Range struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Normalize drops bounds that are not valid calendar days.
func (r Range) Normalize() Range {
	out := r
	if _, ok := parseDay(r.From); !ok {
		out.From = ""
	}
	if _, ok := parseDay(r.To); !ok {
		out.To = ""
	}
	return out
}

func (r Range) IsZero() bool { return r.From == "" && r.To == "" }

// IsValid reports false only when both bounds are present and from is after to.
// A half-filled range means "no filter yet" and is valid.
func (r Range) IsValid() bool {
	from, okFrom := parseDay(r.From)
	to, okTo := parseDay(r.To)
	if !okFrom || !okTo {
		return true
	}
	return !from.After(to)
}

// Complete reports whether both bounds or neither are set. Only complete ranges
// are sent to the API.
func (r Range) Complete() bool {
	n := r.Normalize()
	return (n.From == "") == (n.To == "")
}

// Bounds expands the range to [from 00:00:00.000, to 23:59:59.999] in loc.
// Missing bounds come back as the zero time.
func (r Range) Bounds(loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if d, ok := parseDay(r.From); ok {
		from = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	if d, ok := parseDay(r.To); ok {
		to = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	}
	return from, to
}

// Query renders the bounds as absolute UTC timestamps for the API.
func (r Range) Query(loc *time.Location) url.Values {
	values := url.Values{}
	from, to := r.Bounds(loc)
	if !from.IsZero() {
		values.Set("from", FormatTimestamp(from))
	}
	if !to.IsZero() {
		values.Set("to", FormatTimestamp(to))
	}
	return values
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// Text describes the range for the page header, e.g. "2025년 7월 ~ 9월 분석".
func (r Range) Text() string { return FormatText(r.From, r.To) }

func FormatText(from, to string) string {
	f, okFrom := parseDay(from)
	t, okTo := parseDay(to)
	if !okFrom || !okTo {
		return defaultText
	}

	switch {
	case f.Year() == t.Year() && f.Month() == t.Month():
		return fmt.Sprintf("%d년 %d월 분석", f.Year(), f.Month())
	case f.Year() == t.Year():
		return fmt.Sprintf("%d년 %d월 ~ %d월 분석", f.Year(), f.Month(), t.Month())
	default:
		return fmt.Sprintf("%d년 %d월 ~ %d년 %d월 분석", f.Year(), f.Month(), t.Year(), t.Month())
	}
}

// Filter is a Range kept in the URL under "from" and "to".
type Filter struct {
	from urlstate.String
	to   urlstate.String
}

func NewFilter(store urlstate.Store) *Filter {
	return &Filter{
		from: urlstate.NewString(store, urlstate.KeyFrom, ""),
		to:   urlstate.NewString(store, urlstate.KeyTo, ""),
	}
}

// SeedDefault fills each bound from def only where the URL has none.
func (f *Filter) SeedDefault(def Range) {
	if def.From != "" && f.from.Get() == "" {
		f.from.Set(def.From)
	}
	if def.To != "" && f.to.Get() == "" {
		f.to.Set(def.To)
	}
}

func (f *Filter) SetFrom(day string) { f.from.Set(day) }

func (f *Filter) SetTo(day string) { f.to.Set(day) }

func (f *Filter) Reset() {
	f.from.Set("")
	f.to.Set("")
}

// SetSingleDate filters to one day.
func (f *Filter) SetSingleDate(day string) {
	f.from.Set(day)
	f.to.Set(day)
}

// Range returns the filter with unparseable bounds dropped.
func (f *Filter) Range() Range {
	return Range{From: f.from.Get(), To: f.to.Get()}.Normalize()
}

func (f *Filter) IsValid() bool { return f.Range().IsValid() }
