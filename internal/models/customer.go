package models

import "github.com/shopspring/decimal"

func init() {
	// Amounts travel as plain JSON numbers, the way the dashboard API has always sent them.
	decimal.MarshalJSONWithoutQuotes = true
}

type Customer struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type CustomerPurchase struct {
	Date     string          `json:"date"`
	Quantity int             `json:"quantity"`
	Product  string          `json:"product"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imgSrc"`
}

// CustomerQuery mirrors the query string accepted by GET /api/customers.
// SortBy orders by total amount and is either "asc", "desc" or empty.
type CustomerQuery struct {
	SortBy string `json:"sortBy,omitempty" schema:"sortBy" validate:"omitempty,oneof=asc desc"`
	Name   string `json:"name,omitempty" schema:"name" validate:"max=100"`
}
