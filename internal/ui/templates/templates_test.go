package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall-dashboard/internal/dashboard"
	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/pagination"
	"mall-dashboard/internal/sorting"
)

func sampleView() dashboard.View {
	return dashboard.View{
		State:       dashboard.ListState{Search: "김", Page: 2, From: "2024-07-01", To: "2024-07-31"},
		SearchInput: "김",
		Sort:        sorting.State{Field: sorting.FieldTotalAmount, Order: sorting.Desc},
		Rows: []models.Customer{
			{ID: 7, Name: "김철수", Count: 3, TotalAmount: decimal.NewFromInt(1234000)},
			{ID: 2, Name: "김영희", Count: 1, TotalAmount: decimal.RequireFromString("19999.6")},
		},
		TotalCustomers: 12,
		Pages:          pagination.PageNumbers(2, 2, pagination.DefaultDelta),
		CurrentPage:    2,
		TotalPages:     2,
		CanPrev:        true,
		Range:          daterange.Range{From: "2024-07-01", To: "2024-07-31"},
		RangeText:      "2024년 7월 분석",
		RangeValid:     true,
		Frequency: []models.PriceFrequency{
			{Range: "≤2만원", Count: 4},
			{Range: "2만원대", Count: 2},
			{Range: "3만원대", Count: 0},
		},
	}
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDashboard_Page(t *testing.T) {
	v := sampleView()
	v.Detail = &dashboard.DetailView{
		CustomerID: 7,
		Name:       "김철수",
		Purchases: []models.CustomerPurchase{
			{Date: "2024-07-20", Product: "린넨 셔츠", Quantity: 2, Price: decimal.NewFromInt(58000), ImageURL: "/static/img/products/3.png"},
		},
	}

	html, err := RenderString(context.Background(), Dashboard("sid-1", v))
	require.NoError(t, err)
	doc := parse(t, html)

	assert.Equal(t, Title, doc.Find("title").Text())
	assert.Equal(t, 1, doc.Find("#frequency-section").Length())
	assert.Equal(t, 1, doc.Find("#customer-section").Length())
	assert.Equal(t, 1, doc.Find("#detail-modal").Length())

	signals, ok := doc.Find("body").Attr("data-signals")
	require.True(t, ok)
	assert.JSONEq(t, `{"sid":"sid-1","search":"김","from":"2024-07-01","to":"2024-07-31"}`, signals)

	assert.Equal(t, "김철수 님의 구매 내역", doc.Find("#detail-modal h3").Text())
	img, _ := doc.Find("#detail-modal img").Attr("src")
	assert.Equal(t, "/static/img/products/3.png", img)
	assert.Contains(t, doc.Find("#detail-modal tbody").Text(), "58,000원")
}

func TestCustomerList(t *testing.T) {
	html, err := RenderString(context.Background(), CustomerList(sampleView()))
	require.NoError(t, err)
	doc := parse(t, html)

	rows := doc.Find("#customer-list tbody tr")
	require.Equal(t, 2, rows.Length())

	first := rows.First().Find("td")
	assert.Equal(t, "김철수", first.Eq(1).Text())
	assert.Equal(t, "1,234,000원", first.Eq(3).Text())
	assert.Equal(t, "20,000원", rows.Eq(1).Find("td").Eq(3).Text())

	id, _ := rows.First().Attr("data-customer-id")
	assert.Equal(t, "7", id)

	assert.Contains(t, doc.Find("th").Eq(3).Text(), "▼")
	assert.Equal(t, "2", doc.Find(".pagination .current").Text())

	prev, ok := doc.Find(".pagination a").First().Attr("href")
	require.True(t, ok)
	assert.Equal(t, "/?from=2024-07-01&search=%EA%B9%80&to=2024-07-31", prev)
	assert.Equal(t, 1, doc.Find(".pagination .disabled").Length(), "no next page")
	assert.Contains(t, doc.Find(".total").Text(), "12명")
}

func TestCustomerList_States(t *testing.T) {
	tests := []struct {
		name  string
		view  dashboard.View
		class string
		text  string
	}{
		{"error", dashboard.View{CustomersError: "고객 목록을 불러오는데 실패했습니다: Bad Gateway"}, ".error", "Bad Gateway"},
		{"loading", dashboard.View{CustomersLoading: true}, ".loading", "불러오는 중"},
		{"empty", dashboard.View{}, ".empty", "검색 결과가 없습니다"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := RenderString(context.Background(), CustomerList(tt.view))
			require.NoError(t, err)
			doc := parse(t, html)
			assert.Contains(t, doc.Find(tt.class).Text(), tt.text)
			assert.Zero(t, doc.Find("table").Length())
		})
	}
}

func TestFrequencySection(t *testing.T) {
	html, err := RenderString(context.Background(), FrequencySection(sampleView()))
	require.NoError(t, err)
	doc := parse(t, html)

	assert.Equal(t, "2024년 7월 분석", doc.Find("#frequency-body h2").Text())
	bars := doc.Find(".bar")
	require.Equal(t, 3, bars.Length())

	style, _ := bars.Eq(1).Find(".fill").Attr("style")
	assert.Contains(t, style, "50%")
	assert.Equal(t, "≤2만원", bars.First().Find(".label").Text())
}

func TestFrequencySection_InvalidRange(t *testing.T) {
	v := dashboard.View{RangeText: "2024년 8월 ~ 7월 분석", RangeValid: false}
	html, err := RenderString(context.Background(), FrequencySection(v))
	require.NoError(t, err)
	doc := parse(t, html)

	assert.Contains(t, doc.Find(".error").Text(), "시작일은 종료일보다 늦을 수 없습니다")
	assert.Zero(t, doc.Find(".chart").Length())
}

func TestDetailModal_Closed(t *testing.T) {
	html, err := RenderString(context.Background(), DetailModal(dashboard.View{}))
	require.NoError(t, err)
	assert.Equal(t, `<div id="detail-modal"></div>`, html)
}

func TestCustomerList_Actions(t *testing.T) {
	html, err := RenderString(context.Background(), CustomerList(sampleView()))
	require.NoError(t, err)
	doc := parse(t, html)

	click, _ := doc.Find("#customer-list tbody tr").First().Attr("data-on:click")
	assert.Equal(t, "@post('/sse/customers/detail?id=7')", click)

	sort, _ := doc.Find("th").Eq(1).Attr("data-on:click")
	assert.Equal(t, "@post('/sse/customers/sort?field=name')", sort)
	assert.Equal(t, "ID", strings.TrimSpace(doc.Find("th").First().Text()), "no arrow on unsorted columns")

	page, ok := doc.Find(".pagination a").Eq(1).Attr("data-on:click__prevent")
	require.True(t, ok)
	assert.Equal(t, "@post('/sse/customers/page?n=1')", page)
}

func TestDashboard_RangeInputs(t *testing.T) {
	html, err := RenderString(context.Background(), Dashboard("sid-1", sampleView()))
	require.NoError(t, err)
	doc := parse(t, html)

	inputs := doc.Find(`.range-controls input[type="date"]`)
	require.Equal(t, 2, inputs.Length())
	from, _ := inputs.Eq(0).Attr("data-on:change")
	to, _ := inputs.Eq(1).Attr("data-on:change")
	assert.Equal(t, "@post('/sse/purchases/range?mode=from')", from)
	assert.Equal(t, "@post('/sse/purchases/range?mode=to')", to)
}

func TestFrequencySection_BarTitles(t *testing.T) {
	v := sampleView()
	v.Frequency = []models.PriceFrequency{{Range: "9만원대", Count: 1200}}
	html, err := RenderString(context.Background(), FrequencySection(v))
	require.NoError(t, err)
	doc := parse(t, html)

	title, _ := doc.Find(".bar").Attr("title")
	assert.Equal(t, "9만원대: 1,200건", title)
	assert.Equal(t, "1,200", doc.Find(".bar .count").Text())
}

func TestDetailModal_States(t *testing.T) {
	tests := []struct {
		name   string
		detail dashboard.DetailView
		class  string
		text   string
	}{
		{"loading", dashboard.DetailView{Name: "김철수", Loading: true}, ".loading", "불러오는 중"},
		{"error", dashboard.DetailView{Name: "김철수", Error: "구매 내역을 불러오는데 실패했습니다"}, ".error", "실패"},
		{"empty", dashboard.DetailView{Name: "김철수"}, ".empty", "구매 내역이 없습니다"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.detail
			html, err := RenderString(context.Background(), DetailModal(dashboard.View{Detail: &d}))
			require.NoError(t, err)
			doc := parse(t, html)
			assert.Equal(t, "김철수 님의 구매 내역", doc.Find("h3").Text())
			assert.Contains(t, doc.Find(tt.class).Text(), tt.text)
			assert.Zero(t, doc.Find("table").Length())
		})
	}
}

func TestRenderString_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RenderString(ctx, CustomerList(sampleView()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0원", Won(decimal.Zero))
	assert.Equal(t, "1,000,000원", Won(decimal.NewFromInt(1000000)))
	assert.Equal(t, "12,345", Number(12345))

	bars := Bars([]models.PriceFrequency{{Range: "a", Count: 0}})
	assert.Equal(t, 0, bars[0].Percent)
}
