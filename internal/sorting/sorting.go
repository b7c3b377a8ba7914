package sorting

import (
	"cmp"
	"slices"
	"strings"

	"mall-dashboard/internal/models"
)

type Field string

const (
	FieldID          Field = "id"
	FieldName        Field = "name"
	FieldCount       Field = "count"
	FieldTotalAmount Field = "totalAmount"
)

type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// State is the (field, order) pair of the customer table.
type State struct {
	Field Field
	Order Order
}

func Default() State { return State{Field: FieldID, Order: Asc} }

func ParseField(s string) Field {
	switch f := Field(s); f {
	case FieldID, FieldName, FieldCount, FieldTotalAmount:
		return f
	default:
		return FieldID
	}
}

func ParseOrder(s string) Order {
	if Order(strings.ToLower(s)) == Desc {
		return Desc
	}
	return Asc
}

func Parse(field, order string) State {
	return State{Field: ParseField(field), Order: ParseOrder(order)}
}

// Toggle flips the order when f is already the sort field; any other field
// starts ascending.
func (s State) Toggle(f Field) State {
	if s.Field == f {
		if s.Order == Asc {
			return State{Field: f, Order: Desc}
		}
		return State{Field: f, Order: Asc}
	}
	return State{Field: f, Order: Asc}
}

// APIOrder is the sortBy value sent to the customers endpoint. The API only
// sorts by total amount, so every other field is sorted here.
func (s State) APIOrder() string {
	if s.Field == FieldTotalAmount {
		return string(s.Order)
	}
	return ""
}

// Customers returns a sorted copy of list. Ties keep id order.
func Customers(list []models.Customer, s State) []models.Customer {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b models.Customer) int {
		var c int
		switch s.Field {
		case FieldName:
			c = strings.Compare(a.Name, b.Name)
		case FieldCount:
			c = cmp.Compare(a.Count, b.Count)
		case FieldTotalAmount:
			c = a.TotalAmount.Cmp(b.TotalAmount)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if s.Order == Desc {
			return -c
		}
		return c
	})
	return out
}
