package sorting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"mall-dashboard/internal/models"
)

func TestToggle_SameFieldAlternates(t *testing.T) {
	s := Default()
	var orders []Order
	for range 3 {
		s = s.Toggle(FieldCount)
		orders = append(orders, s.Order)
	}
	// first toggle moves to a new field, so it starts ascending
	assert.Equal(t, []Order{Asc, Desc, Asc}, orders)

	fresh := State{Field: FieldCount, Order: Asc}
	fresh = fresh.Toggle(FieldCount)
	assert.Equal(t, Desc, fresh.Order)
	fresh = fresh.Toggle(FieldCount)
	assert.Equal(t, Asc, fresh.Order)
}

func TestToggle_NewFieldResetsToAsc(t *testing.T) {
	for _, from := range []State{
		{FieldID, Asc}, {FieldID, Desc}, {FieldCount, Desc}, {FieldTotalAmount, Asc},
	} {
		got := from.Toggle(FieldName)
		assert.Equal(t, State{Field: FieldName, Order: Asc}, got)
	}
}

func TestParse_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default(), Parse("", ""))
	assert.Equal(t, Default(), Parse("price", "sideways"))
	assert.Equal(t, State{FieldTotalAmount, Desc}, Parse("totalAmount", "DESC"))
}

func TestAPIOrder(t *testing.T) {
	assert.Equal(t, "", State{FieldID, Desc}.APIOrder())
	assert.Equal(t, "", State{FieldCount, Asc}.APIOrder())
	assert.Equal(t, "desc", State{FieldTotalAmount, Desc}.APIOrder())
}

func TestCustomers(t *testing.T) {
	list := []models.Customer{
		{ID: 3, Name: "박민수", Count: 2, TotalAmount: decimal.NewFromInt(90000)},
		{ID: 1, Name: "김철수", Count: 5, TotalAmount: decimal.NewFromInt(150000)},
		{ID: 2, Name: "이영희", Count: 2, TotalAmount: decimal.NewFromInt(30000)},
	}

	ids := func(cs []models.Customer) []int {
		out := make([]int, len(cs))
		for i, c := range cs {
			out[i] = c.ID
		}
		return out
	}

	assert.Equal(t, []int{1, 2, 3}, ids(Customers(list, Default())))
	assert.Equal(t, []int{3, 2, 1}, ids(Customers(list, State{FieldID, Desc})))
	assert.Equal(t, []int{2, 3, 1}, ids(Customers(list, State{FieldCount, Asc})))
	assert.Equal(t, []int{1, 3, 2}, ids(Customers(list, State{FieldTotalAmount, Desc})))
	assert.Equal(t, []int{1, 3, 2}, ids(Customers(list, State{FieldName, Asc})))

	assert.Equal(t, 3, list[0].ID, "input is left untouched")
}
