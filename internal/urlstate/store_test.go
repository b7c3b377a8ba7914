package urlstate

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_ParamDefaults(t *testing.T) {
	q := ParseQuery("/", "search=kim&page=")

	assert.Equal(t, "kim", q.Param(KeySearch, ""))
	assert.Equal(t, "1", q.Param(KeyPage, "1"), "empty value falls back to default")
	assert.Equal(t, "id", q.Param(KeySortBy, "id"))
}

func TestQuery_SetParamRemovesOnEmpty(t *testing.T) {
	q := ParseQuery("/", "search=kim&sortBy=count")

	q.SetParam(KeySearch, "")
	q.SetParam(KeySortOrder, "desc")

	assert.Equal(t, "/?sortBy=count&sortOrder=desc", q.URL())
}

func TestQuery_SetParamsBatched(t *testing.T) {
	q := NewQuery("/", nil)

	q.SetParams(map[string]string{
		KeyFrom: "2025-07-01",
		KeyTo:   "2025-07-31",
		KeyPage: "",
	})

	assert.Equal(t, "/?from=2025-07-01&to=2025-07-31", q.URL())

	q.RemoveParams(KeyFrom, KeyTo)
	assert.Equal(t, "/", q.URL())
}

func TestQuery_ClearKeepsPath(t *testing.T) {
	q := ParseQuery("/dashboard", "a=1&b=2")
	q.Clear()
	assert.Equal(t, "/dashboard", q.URL())
}

func TestQuery_WritesDoNotNotify(t *testing.T) {
	q := NewQuery("/", nil)
	calls := 0
	q.Subscribe(func() { calls++ })

	q.SetParam(KeySearch, "lee")
	q.SetParams(map[string]string{KeyPage: "2"})
	q.RemoveParams(KeyPage)

	assert.Zero(t, calls)
}

func TestQuery_NavigateNotifiesSubscribers(t *testing.T) {
	q := ParseQuery("/", "page=3")
	var seen []string
	cancel := q.Subscribe(func() { seen = append(seen, q.Param(KeyPage, "1")) })

	q.Navigate("page=2")
	q.Navigate("")
	cancel()
	q.Navigate("page=9")

	assert.Equal(t, []string{"2", "1"}, seen)
}

func TestQuery_ValuesIsACopy(t *testing.T) {
	q := ParseQuery("/", "search=park")
	v := q.Values()
	v.Set(KeySearch, "changed")
	assert.Equal(t, "park", q.Param(KeySearch, ""))
}

func TestNewQuery_CopiesInput(t *testing.T) {
	in := url.Values{KeySearch: {"choi"}}
	q := NewQuery("", in)
	in.Set(KeySearch, "other")

	assert.Equal(t, "choi", q.Param(KeySearch, ""))
	assert.Equal(t, "/?search=choi", q.URL())
}

func TestTypedBindings(t *testing.T) {
	q := ParseQuery("/", "page=abc&customerId=12&open=true")

	page := NewInt(q, KeyPage, 1)
	assert.Equal(t, 1, page.Get(), "non-numeric page reads as default")

	page.Set(4)
	assert.Equal(t, 4, page.Get())
	page.Set(1)
	assert.Empty(t, q.Values().Get(KeyPage))

	id := NewInt(q, KeyCustomerID, 0)
	assert.Equal(t, 12, id.Get())

	open := NewBool(q, "open", false)
	assert.True(t, open.Get())
	open.Set(false)
	assert.False(t, open.Get())

	search := NewString(q, KeySearch, "")
	search.Set("kang")
	assert.Equal(t, "kang", search.Get())
}

type testState struct {
	Search string `schema:"search,omitempty"`
	Page   int    `schema:"page,omitempty"`
	Open   bool   `schema:"open,omitempty"`
}

func TestDecode_MalformedKeepsDefaults(t *testing.T) {
	state := testState{Page: 1}
	values, err := url.ParseQuery("search=yoon&page=two&extra=1")
	require.NoError(t, err)

	require.NoError(t, Decode(values, &state))

	assert.Equal(t, "yoon", state.Search)
	assert.Equal(t, 1, state.Page)
}

func TestEncode_OmitsZeroValues(t *testing.T) {
	values, err := Encode(testState{Search: "han", Page: 0})
	require.NoError(t, err)

	assert.Equal(t, "search=han", values.Encode())
}
