package dashboard

import (
	"fmt"
	"strconv"

	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/pagination"
	"mall-dashboard/internal/sorting"
	"mall-dashboard/internal/urlstate"
)

// View is a consistent snapshot of everything the page renders.
type View struct {
	State ListState
	// Navigation counts back/forward steps; inputs owned by the browser are
	// resynced when it moves.
	Navigation uint64

	SearchInput string
	Sort        sorting.State

	Rows             []models.Customer
	TotalCustomers   int
	Pages            []pagination.Item
	CurrentPage      int
	TotalPages       int
	CanPrev          bool
	CanNext          bool
	CustomersLoading bool
	CustomersError   string

	Detail *DetailView

	Range            daterange.Range
	RangeText        string
	RangeValid       bool
	RangeIncomplete  bool
	Frequency        []models.PriceFrequency
	FrequencyLoading bool
	FrequencyError   string
}

type DetailView struct {
	CustomerID int
	Name       string
	Purchases  []models.CustomerPurchase
	Loading    bool
	Error      string
}

// Title is the modal heading.
func (d DetailView) Title() string {
	return fmt.Sprintf("%s 님의 구매 내역", d.Name)
}

// PageHref links to page n with the rest of the state unchanged.
func (v View) PageHref(n int) string {
	st := v.State
	st.Page = n
	if n <= 1 {
		st.Page = 0
	}
	values, err := urlstate.Encode(st)
	if err != nil || len(values) == 0 {
		return "/"
	}
	return "/?" + values.Encode()
}

// SortIndicator is the arrow shown next to a column header.
func (v View) SortIndicator(f sorting.Field) string {
	if v.Sort.Field != f {
		return ""
	}
	if v.Sort.Order == sorting.Desc {
		return "▼"
	}
	return "▲"
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.dates.Range()
	v := View{
		Navigation:       c.navigations,
		SearchInput:      c.searchInput,
		Sort:             c.sort,
		TotalCustomers:   len(c.customers),
		CustomersLoading: c.list.busy(),
		CustomersError:   errMessage(c.customersErr),
		Range:            r,
		RangeText:        r.Text(),
		RangeValid:       r.IsValid(),
		RangeIncomplete:  !r.Complete(),
		Frequency:        c.frequency,
		FrequencyLoading: c.freq.busy(),
		FrequencyError:   errMessage(c.frequencyErr),
	}

	sorted := sorting.Customers(c.customers, c.sort)
	v.Rows = pagination.Slice(sorted, c.paginator)
	v.Pages = c.paginator.PageNumbers()
	v.CurrentPage = c.paginator.CurrentPage()
	v.TotalPages = c.paginator.TotalPages()
	v.CanPrev = c.paginator.CanGoPrev()
	v.CanNext = c.paginator.CanGoNext()

	v.State = ListState{
		Search:     c.search,
		Page:       v.CurrentPage,
		CustomerID: c.selectedID,
		From:       r.From,
		To:         r.To,
	}
	if c.sort != sorting.Default() {
		v.State.SortBy = string(c.sort.Field)
		v.State.SortOrder = string(c.sort.Order)
	}

	if c.selectedID != 0 {
		d := &DetailView{
			CustomerID: c.selectedID,
			Name:       "고객 #" + strconv.Itoa(c.selectedID),
			Purchases:  c.purchases,
			Loading:    c.detail.busy(),
			Error:      errMessage(c.purchasesErr),
		}
		for _, cust := range c.customers {
			if cust.ID == c.selectedID {
				d.Name = cust.Name
				break
			}
		}
		v.Detail = d
	}
	return v
}
