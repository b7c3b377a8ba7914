package urlstate

import (
	"net/url"
	"strconv"

	"github.com/gorilla/schema"
)

// String binds one query key to a string value.
type String struct {
	store Store
	key   string
	def   string
}

func NewString(store Store, key, def string) String {
	return String{store: store, key: key, def: def}
}

func (s String) Get() string { return s.store.Param(s.key, s.def) }

func (s String) Set(value string) { s.store.SetParam(s.key, value) }

// Int binds one query key to an integer. Anything that does not parse reads as
// the default.
type Int struct {
	store Store
	key   string
	def   int
}

func NewInt(store Store, key string, def int) Int {
	return Int{store: store, key: key, def: def}
}

func (i Int) Get() int {
	raw := i.store.Param(i.key, "")
	if raw == "" {
		return i.def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return i.def
	}
	return n
}

// Set writes value, or removes the key when value equals the default.
func (i Int) Set(value int) {
	if value == i.def {
		i.store.RemoveParams(i.key)
		return
	}
	i.store.SetParam(i.key, strconv.Itoa(value))
}

// Bool binds one query key to a flag stored as "true".
type Bool struct {
	store Store
	key   string
	def   bool
}

func NewBool(store Store, key string, def bool) Bool {
	return Bool{store: store, key: key, def: def}
}

func (b Bool) Get() bool {
	raw := b.store.Param(b.key, "")
	if raw == "" {
		return b.def
	}
	return raw == "true"
}

func (b Bool) Set(value bool) {
	if value {
		b.store.SetParam(b.key, "true")
		return
	}
	b.store.RemoveParams(b.key)
}

var (
	decoder = schema.NewDecoder()
	encoder = schema.NewEncoder()
)

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// Decode fills dst from values. dst should already hold its defaults: fields
// whose value fails to convert keep them, and conversion errors are swallowed.
func Decode(values url.Values, dst any) error {
	err := decoder.Decode(dst, values)
	if err == nil {
		return nil
	}
	if multi, ok := err.(schema.MultiError); ok {
		for _, fieldErr := range multi {
			if _, conv := fieldErr.(schema.ConversionError); !conv {
				return err
			}
		}
		return nil
	}
	return err
}

// Encode renders src as query values. Fields tagged omitempty are dropped when
// zero.
func Encode(src any) (url.Values, error) {
	values := url.Values{}
	if err := encoder.Encode(src, values); err != nil {
		return nil, err
	}
	for k, v := range values {
		if len(v) == 0 || (len(v) == 1 && v[0] == "") {
			delete(values, k)
		}
	}
	return values, nil
}
