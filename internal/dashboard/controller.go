// Package dashboard holds the per-tab state of the dashboard page: customer
// search, sort, pagination, the open detail and the purchase date range.
//
// All of it lives in the tab's URL. A Controller reads the URL once when it
// is created and again after every back/forward navigation, and writes each
// change straight back (replacing the entry, never adding one).
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mall-dashboard/internal/daterange"
	"mall-dashboard/internal/debounce"
	"mall-dashboard/internal/models"
	"mall-dashboard/internal/pagination"
	"mall-dashboard/internal/sorting"
	"mall-dashboard/internal/urlstate"
)

// Source provides the three datasets the dashboard shows.
type Source interface {
	Customers(ctx context.Context, q models.CustomerQuery) ([]models.Customer, error)
	CustomerPurchases(ctx context.Context, id int) ([]models.CustomerPurchase, error)
	PurchaseFrequency(ctx context.Context, r daterange.Range) ([]models.PriceFrequency, error)
}

type Config struct {
	PerPage      int
	SearchDelay  time.Duration
	DefaultRange daterange.Range
}

// ListState is the URL form of the customer list.
type ListState struct {
	Search     string `schema:"search,omitempty"`
	SortBy     string `schema:"sortBy,omitempty"`
	SortOrder  string `schema:"sortOrder,omitempty"`
	Page       int    `schema:"page,omitempty"`
	CustomerID int    `schema:"customerId,omitempty"`
	From       string `schema:"from,omitempty"`
	To         string `schema:"to,omitempty"`
}

type Controller struct {
	mu     sync.Mutex
	store  urlstate.Store
	source Source
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	searchParam   urlstate.String
	pageParam     urlstate.Int
	customerParam urlstate.Int
	dates         *daterange.Filter

	searchInput string
	search      string
	sort        sorting.State
	paginator   *pagination.Paginator
	pendingPage int
	selectedID  int

	customers        []models.Customer
	customersLoaded  bool
	customersErr     error
	purchases        []models.CustomerPurchase
	purchasesErr     error
	frequency        []models.PriceFrequency
	frequencyErr     error

	list, detail, freq slot

	debouncer   *debounce.Debouncer
	unsubscribe func()
	navigations uint64

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int

	closed bool
}

func New(store urlstate.Store, source Source, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:         store,
		source:        source,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		searchParam:   urlstate.NewString(store, urlstate.KeySearch, ""),
		pageParam:     urlstate.NewInt(store, urlstate.KeyPage, 1),
		customerParam: urlstate.NewInt(store, urlstate.KeyCustomerID, 0),
		dates:         daterange.NewFilter(store),
		paginator:     pagination.New(0, pagination.WithPerPage(cfg.PerPage)),
		debouncer:     debounce.New(cfg.SearchDelay),
		subscribers:   make(map[int]chan struct{}),
	}

	c.dates.SeedDefault(cfg.DefaultRange)
	c.loadFromStoreLocked()
	c.unsubscribe = store.Subscribe(c.onNavigate)
	return c
}

// loadFromStoreLocked replaces the in-memory state with what the URL says.
// Values that do not parse fall back to their defaults.
func (c *Controller) loadFromStoreLocked() {
	st := ListState{Page: 1}
	if err := urlstate.Decode(c.store.Values(), &st); err != nil {
		c.logger.Debug("ignoring unreadable url state", "error", err)
	}

	c.search = st.Search
	c.searchInput = st.Search
	c.sort = sorting.Parse(st.SortBy, st.SortOrder)
	c.pendingPage = max(st.Page, 1)
	c.selectedID = max(st.CustomerID, 0)
	c.paginator.Reset()
}

func (c *Controller) onNavigate() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debouncer.Cancel()
	prevID := c.selectedID
	c.loadFromStoreLocked()
	c.navigations++
	if c.selectedID != prevID {
		c.detail.abandon()
		c.purchases, c.purchasesErr = nil, nil
	}
	c.mu.Unlock()

	c.notify()
	go c.Refresh(c.ctx)
}

// Refresh fetches every dataset the current state needs, concurrently, and
// returns once all of them have settled. Failures are kept per section.
func (c *Controller) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.fetchCustomers(ctx)
		return nil
	})
	g.Go(func() error {
		c.fetchPurchases(ctx)
		return nil
	})
	g.Go(func() error {
		c.fetchFrequency(ctx)
		return nil
	})
	return g.Wait()
}

func (c *Controller) customerQueryLocked() models.CustomerQuery {
	return models.CustomerQuery{SortBy: c.sort.APIOrder(), Name: c.search}
}

func (c *Controller) fetchCustomers(parent context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	q := c.customerQueryLocked()
	ctx, token := c.list.begin(parent)
	c.mu.Unlock()
	c.notify()

	list, err := c.source.Customers(ctx, q)

	c.mu.Lock()
	if !c.list.finish(token) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Warn("customer list fetch failed", "error", err, "name", q.Name, "sort_by", q.SortBy)
		c.customersErr = err
		if c.customersLoaded && c.pendingPage > 0 {
			// the rows already shown still settle a parked page
			c.applyTotalLocked()
		}
	} else {
		c.customers = list
		c.customersErr = nil
		c.customersLoaded = true
		c.applyTotalLocked()
	}
	c.mu.Unlock()
	c.notify()
}

// applyTotalLocked resizes the paginator for the current list, honouring a
// page requested before the list was known, and writes the corrected page
// back to the URL.
func (c *Controller) applyTotalLocked() {
	c.paginator.SetTotalItems(len(c.customers))
	if c.pendingPage > 0 {
		c.paginator.GoToPage(c.pendingPage)
		c.pendingPage = 0
	}
	c.pageParam.Set(c.paginator.CurrentPage())
}

func (c *Controller) fetchPurchases(parent context.Context) {
	c.mu.Lock()
	id := c.selectedID
	if c.closed || id == 0 {
		c.mu.Unlock()
		return
	}
	ctx, token := c.detail.begin(parent)
	c.mu.Unlock()
	c.notify()

	list, err := c.source.CustomerPurchases(ctx, id)

	c.mu.Lock()
	if !c.detail.finish(token) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Warn("purchase history fetch failed", "error", err, "customer_id", id)
		c.purchases, c.purchasesErr = nil, err
	} else {
		c.purchases, c.purchasesErr = list, nil
	}
	c.mu.Unlock()
	c.notify()
}

// fetchFrequency only runs for a complete, valid range: both days or neither.
func (c *Controller) fetchFrequency(parent context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	r := c.dates.Range()
	if !c.rangeReadyLocked(r) {
		c.mu.Unlock()
		c.notify()
		return
	}
	ctx, token := c.freq.begin(parent)
	c.mu.Unlock()
	c.notify()

	list, err := c.source.PurchaseFrequency(ctx, r)

	c.mu.Lock()
	if !c.freq.finish(token) {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.logger.Warn("purchase frequency fetch failed", "error", err, "from", r.From, "to", r.To)
		c.frequency, c.frequencyErr = nil, err
	} else {
		c.frequency, c.frequencyErr = list, nil
	}
	c.mu.Unlock()
	c.notify()
}

// rangeReadyLocked reports whether r can be requested. When it cannot, the
// chart is emptied and any request in flight is dropped.
func (c *Controller) rangeReadyLocked(r daterange.Range) bool {
	if r.Complete() && r.IsValid() {
		return true
	}
	c.freq.abandon()
	c.frequency, c.frequencyErr = nil, nil
	return false
}

func (c *Controller) spawn(fetch func(context.Context)) {
	go fetch(c.ctx)
}

// SetSearchInput records a keystroke. The search itself, and the URL, follow
// once typing has paused for the debounce delay.
func (c *Controller) SetSearchInput(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.searchInput = text
	c.mu.Unlock()

	c.debouncer.Trigger(func() { c.commitSearch(text) })
	c.notify()
}

// SubmitSearch applies text immediately, dropping any pending keystrokes.
func (c *Controller) SubmitSearch(text string) {
	c.debouncer.Cancel()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.searchInput = text
	c.mu.Unlock()
	c.commitSearch(text)
}

func (c *Controller) commitSearch(text string) {
	c.mu.Lock()
	if c.closed || text == c.search {
		c.mu.Unlock()
		return
	}
	c.search = text
	c.searchParam.Set(text)
	c.resetPageLocked()
	c.mu.Unlock()

	c.notify()
	c.spawn(c.fetchCustomers)
}

func (c *Controller) resetPageLocked() {
	c.paginator.Reset()
	c.pendingPage = 0
	c.pageParam.Set(1)
}

// ToggleSort sorts by field, flipping the order when it is already the sort
// field. The page goes back to 1.
func (c *Controller) ToggleSort(field sorting.Field) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.sort
	c.sort = c.sort.Toggle(field)
	c.writeSortLocked()
	c.resetPageLocked()
	refetch := prev.APIOrder() != c.sort.APIOrder()
	c.mu.Unlock()

	c.notify()
	if refetch {
		c.spawn(c.fetchCustomers)
	}
}

func (c *Controller) writeSortLocked() {
	if c.sort == sorting.Default() {
		c.store.RemoveParams(urlstate.KeySortBy, urlstate.KeySortOrder)
		return
	}
	c.store.SetParams(map[string]string{
		urlstate.KeySortBy:    string(c.sort.Field),
		urlstate.KeySortOrder: string(c.sort.Order),
	})
}

func (c *Controller) GoToPage(n int) {
	c.changePage(
		func(p *pagination.Paginator) { p.GoToPage(n) },
		func(int) int { return n },
	)
}

func (c *Controller) NextPage() {
	c.changePage((*pagination.Paginator).NextPage, func(p int) int { return p + 1 })
}

func (c *Controller) PrevPage() {
	c.changePage((*pagination.Paginator).PrevPage, func(p int) int { return p - 1 })
}

// changePage moves the paginator. Until the list for the current URL arrives
// there is no page count to clamp against, so the request is parked on top of
// any page still waiting from the URL and applied when the list lands.
func (c *Controller) changePage(move func(*pagination.Paginator), park func(int) int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.customersLoaded || c.pendingPage > 0 {
		c.pendingPage = max(park(max(c.pendingPage, 1)), 1)
		c.pageParam.Set(c.pendingPage)
	} else {
		move(c.paginator)
		c.pageParam.Set(c.paginator.CurrentPage())
	}
	c.mu.Unlock()
	c.notify()
}

// OpenDetail selects a customer and loads their purchase history.
func (c *Controller) OpenDetail(id int) {
	if id <= 0 {
		c.CloseDetail()
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.selectedID = id
	c.customerParam.Set(id)
	c.purchases, c.purchasesErr = nil, nil
	c.mu.Unlock()

	c.notify()
	c.spawn(c.fetchPurchases)
}

func (c *Controller) CloseDetail() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.selectedID = 0
	c.customerParam.Set(0)
	c.detail.abandon()
	c.purchases, c.purchasesErr = nil, nil
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) SetDateFrom(day string) {
	c.changeRange(func(f *daterange.Filter) { f.SetFrom(day) })
}

func (c *Controller) SetDateTo(day string) {
	c.changeRange(func(f *daterange.Filter) { f.SetTo(day) })
}

// SetDateRange sets both bounds in one step.
func (c *Controller) SetDateRange(from, to string) {
	c.changeRange(func(f *daterange.Filter) {
		f.SetFrom(from)
		f.SetTo(to)
	})
}

func (c *Controller) SetSingleDate(day string) {
	c.changeRange(func(f *daterange.Filter) { f.SetSingleDate(day) })
}

func (c *Controller) ResetDates() {
	c.changeRange((*daterange.Filter).Reset)
}

func (c *Controller) changeRange(update func(*daterange.Filter)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	update(c.dates)
	ready := c.rangeReadyLocked(c.dates.Range())
	c.mu.Unlock()

	c.notify()
	if ready {
		c.spawn(c.fetchFrequency)
	}
}

// URL is the address the tab should show.
func (c *Controller) URL() string { return c.store.URL() }

// Subscribe returns a channel that receives after state changes. Bursts of
// changes are coalesced into one receive.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close stops pending work. The controller ignores every later call.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.list.abandon()
	c.detail.abandon()
	c.freq.abandon()
	c.mu.Unlock()

	c.debouncer.Stop()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.cancel()
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "요청 시간이 초과되었습니다"
	}
	return err.Error()
}
