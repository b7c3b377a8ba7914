package pagination

import "strconv"

const (
	// DefaultPerPage is the customer table page size.
	DefaultPerPage = 10
	// DefaultDelta is how many pages are shown on each side of the current one.
	DefaultDelta = 2
	// fullWindow is the largest page count rendered without ellipses.
	fullWindow = 7
)

// Paginator tracks the current page of a list whose length can change under it.
type Paginator struct {
	totalItems int
	perPage    int
	page       int
}

type Option func(*Paginator)

func WithPerPage(n int) Option {
	return func(p *Paginator) {
		if n > 0 {
			p.perPage = n
		}
	}
}

func WithInitialPage(n int) Option {
	return func(p *Paginator) {
		if n >= 1 {
			p.page = n
		}
	}
}

func New(totalItems int, opts ...Option) *Paginator {
	p := &Paginator{perPage: DefaultPerPage, page: 1}
	for _, opt := range opts {
		opt(p)
	}
	p.SetTotalItems(totalItems)
	return p
}

// SetTotalItems updates the list length. A current page past the new end is
// pulled back to the last page.
func (p *Paginator) SetTotalItems(n int) {
	if n < 0 {
		n = 0
	}
	p.totalItems = n
	if last := p.TotalPages(); p.page > last {
		p.page = last
	}
}

func (p *Paginator) TotalItems() int { return p.totalItems }

func (p *Paginator) PerPage() int { return p.perPage }

func (p *Paginator) TotalPages() int {
	pages := (p.totalItems + p.perPage - 1) / p.perPage
	if pages < 1 {
		return 1
	}
	return pages
}

func (p *Paginator) CurrentPage() int { return p.page }

func (p *Paginator) StartIndex() int { return (p.page - 1) * p.perPage }

func (p *Paginator) EndIndex() int {
	return min(p.StartIndex()+p.perPage, p.totalItems)
}

func (p *Paginator) CanGoPrev() bool { return p.page > 1 }

func (p *Paginator) CanGoNext() bool { return p.page < p.TotalPages() }

// GoToPage moves to n clamped into [1, TotalPages].
func (p *Paginator) GoToPage(n int) {
	p.page = max(1, min(n, p.TotalPages()))
}

func (p *Paginator) NextPage() {
	if p.CanGoNext() {
		p.page++
	}
}

func (p *Paginator) PrevPage() {
	if p.CanGoPrev() {
		p.page--
	}
}

func (p *Paginator) Reset() { p.page = 1 }

// PageNumbers is the window of page links for the current state.
func (p *Paginator) PageNumbers() []Item {
	return PageNumbers(p.page, p.TotalPages(), DefaultDelta)
}

// Slice returns the items that fall on the paginator's current page.
func Slice[T any](items []T, p *Paginator) []T {
	start := min(p.StartIndex(), len(items))
	end := min(p.EndIndex(), len(items))
	return items[start:end]
}

// Item is one entry of a page window: either a page number or a gap.
type Item struct {
	Page int
	Gap  bool
}

func (i Item) String() string {
	if i.Gap {
		return "..."
	}
	return strconv.Itoa(i.Page)
}

// PageNumbers lists the page links to show, e.g. 1 ... 5 6 [7] 8 9 ... 20.
// Up to seven pages are listed in full. Beyond that the first and last page
// are always present, the band current±delta is clipped to [2, total-1], and a
// gap marks every jump between kept numbers.
func PageNumbers(current, total, delta int) []Item {
	if total <= fullWindow {
		items := make([]Item, 0, max(total, 0))
		for i := 1; i <= total; i++ {
			items = append(items, Item{Page: i})
		}
		return items
	}

	start := max(2, current-delta)
	end := min(total-1, current+delta)

	kept := []int{1}
	for i := start; i <= end; i++ {
		kept = append(kept, i)
	}
	kept = append(kept, total)

	items := make([]Item, 0, len(kept)+2)
	prev := 0
	for _, page := range kept {
		if page-prev > 1 {
			items = append(items, Item{Gap: true})
		}
		items = append(items, Item{Page: page})
		prev = page
	}
	return items
}
