package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is one line of the purchase log the store is loaded from.
type Purchase struct {
	ID           int
	CustomerID   int
	CustomerName string
	Product      string
	Price        decimal.Decimal
	Quantity     int
	Date         time.Time
	ImageURL     string
}

func (p Purchase) ForCustomer() CustomerPurchase {
	return CustomerPurchase{
		Date:     p.Date.Format(time.DateOnly),
		Quantity: p.Quantity,
		Product:  p.Product,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}
}

type PriceFrequency struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}
