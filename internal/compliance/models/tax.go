package models

import "github.com/shopspring/decimal"

// TaxParams are the caller-supplied inputs to contractor tax computation.
type TaxParams struct {
	VATRegistered bool
	Currency      string
}

// TaxBreakdown is the computed invoice split. Advisories are descriptive
// metadata only and are never enforced.
type TaxBreakdown struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	VATRate    decimal.Decimal `json:"vat_rate"`
	VAT        decimal.Decimal `json:"vat"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	Advisories []string        `json:"advisories,omitempty"`
}
