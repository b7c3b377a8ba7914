// Package templates renders the dashboard page and the fragments the SSE
// stream patches into it.
//
//go:generate templ generate
package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/a-h/templ"

	"mall-dashboard/internal/dashboard"
	"mall-dashboard/internal/sorting"
)

const Title = "쇼핑몰 구매 데이터 대시보드"

// Element ids the stream patches.
const (
	FrequencyBodyID = "frequency-body"
	CustomerListID  = "customer-list"
	DetailModalID   = "detail-modal"
)

// Signals are the browser-side values the page starts with.
type Signals struct {
	SID    string `json:"sid"`
	Search string `json:"search"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func SignalsFor(sessionID string, v dashboard.View) Signals {
	return Signals{SID: sessionID, Search: v.SearchInput, From: v.Range.From, To: v.Range.To}
}

func signalsJSON(sessionID string, v dashboard.View) (string, error) {
	b, err := json.Marshal(SignalsFor(sessionID, v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sortAction(f sorting.Field) string {
	return fmt.Sprintf("@post('/sse/customers/sort?field=%s')", f)
}

func detailAction(id int) string {
	return "@post('/sse/customers/detail?id=" + strconv.Itoa(id) + "')"
}

func pageAction(n int) string {
	return "@post('/sse/customers/page?n=" + strconv.Itoa(n) + "')"
}

func barTitle(b Bar) string {
	return b.Label + ": " + Number(b.Count) + "건"
}

func barHeight(b Bar) string {
	return fmt.Sprintf("height: %d%%", b.Percent)
}

// RenderString renders c for an SSE patch.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
