// Package urlstate keeps view state in a query string.
//
// A Store plays the role of the browser address bar: every write replaces the
// current entry instead of adding a new one, and only navigation (back/forward)
// is broadcast to subscribers.
package urlstate

import (
	"net/url"
	"sync"
)

// Query parameter keys owned by the dashboard.
const (
	KeySearch     = "search"
	KeySortBy     = "sortBy"
	KeySortOrder  = "sortOrder"
	KeyPage       = "page"
	KeyCustomerID = "customerId"
	KeyFrom       = "from"
	KeyTo         = "to"
)

type Store interface {
	Param(key, def string) string
	SetParam(key, value string)
	SetParams(updates map[string]string)
	RemoveParams(keys ...string)
	Clear()
	Values() url.Values
	URL() string
	Subscribe(fn func()) (cancel func())
}

// Query is an in-memory Store. It is what a browser tab's location looks like
// from the server side.
type Query struct {
	mu        sync.RWMutex
	path      string
	values    url.Values
	listeners map[int]func()
	nextID    int
}

func NewQuery(path string, values url.Values) *Query {
	if path == "" {
		path = "/"
	}
	q := &Query{
		path:      path,
		values:    url.Values{},
		listeners: make(map[int]func()),
	}
	for k, v := range values {
		q.values[k] = append([]string(nil), v...)
	}
	return q
}

// ParseQuery builds a Query from a raw query string. A malformed query yields
// whatever pairs could be decoded.
func ParseQuery(path, rawQuery string) *Query {
	values, _ := url.ParseQuery(rawQuery)
	return NewQuery(path, values)
}

// Param returns the first value for key, or def when the key is absent or empty.
func (q *Query) Param(key, def string) string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if v := q.values.Get(key); v != "" {
		return v
	}
	return def
}

// SetParam sets key to value. An empty value removes the key.
func (q *Query) SetParam(key, value string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	apply(q.values, key, value)
}

func (q *Query) SetParams(updates map[string]string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for k, v := range updates {
		apply(q.values, k, v)
	}
}

func (q *Query) RemoveParams(keys ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, k := range keys {
		q.values.Del(k)
	}
}

func (q *Query) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.values = url.Values{}
}

// Values returns a copy of the current query.
func (q *Query) Values() url.Values {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(url.Values, len(q.values))
	for k, v := range q.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// URL renders path plus query, dropping the "?" when the query is empty.
func (q *Query) URL() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if encoded := q.values.Encode(); encoded != "" {
		return q.path + "?" + encoded
	}
	return q.path
}

// Subscribe registers fn to run after Navigate. Plain writes never notify.
func (q *Query) Subscribe(fn func()) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextID
	q.nextID++
	q.listeners[id] = fn
	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// Navigate swaps the whole query, as a back or forward step does, and notifies
// subscribers. Listeners run outside the lock so they may read the store.
func (q *Query) Navigate(rawQuery string) {
	values, _ := url.ParseQuery(rawQuery)

	q.mu.Lock()
	q.values = values
	listeners := make([]func(), 0, len(q.listeners))
	for _, fn := range q.listeners {
		listeners = append(listeners, fn)
	}
	q.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func apply(values url.Values, key, value string) {
	if value == "" {
		values.Del(key)
		return
	}
	values.Set(key, value)
}
