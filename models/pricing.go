package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingEntry is one row of the pricing catalog, keyed by (category, service type)
type PricingEntry struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Category          string          `gorm:"not null;uniqueIndex:idx_pricing_category_type" json:"category"`
	ServiceType       string          `gorm:"not null;uniqueIndex:idx_pricing_category_type" json:"service_type"`
	CustomerPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"customer_price"`
	ProviderPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"provider_price"`
	ColorSurcharge    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"color_surcharge"`
	IsWhiteApplicable bool            `gorm:"not null;default:false" json:"is_white_applicable"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the PricingEntry model
func (PricingEntry) TableName() string {
	return "pricing_entries"
}

// PriceLine prices quantity units of this entry. The white surcharge only applies
// when the customer asked for it and the entry supports it.
func (p PricingEntry) PriceLine(category, serviceType string, quantity int, isWhite bool) RequestLineItem {
	surcharge := decimal.Zero
	if isWhite && p.IsWhiteApplicable {
		surcharge = p.ColorSurcharge
	}
	qty := decimal.NewFromInt(int64(quantity))
	unit := p.CustomerPrice.Add(surcharge)
	lineCustomer := unit.Mul(qty)
	lineProvider := p.ProviderPrice.Mul(qty)

	return RequestLineItem{
		Category:          category,
		ServiceType:       serviceType,
		Quantity:          quantity,
		IsWhite:           isWhite,
		UnitPrice:         unit,
		ColorSurcharge:    surcharge,
		UnitProviderPrice: p.ProviderPrice,
		LineCustomerPrice: lineCustomer,
		LineProviderPrice: lineProvider,
		LineCommission:    lineCustomer.Sub(lineProvider),
	}
}

// Totals are the money figures of a booking, fixed at intake
type Totals struct {
	CustomerPaid     decimal.Decimal `json:"customer_paid"`
	ProviderPayout   decimal.Decimal `json:"provider_payout"`
	CommissionEarned decimal.Decimal `json:"commission_earned"`
	CalloutFee       decimal.Decimal `json:"callout_fee"`
}

// ComputeTotals sums priced line items and adds the callout fee, which is platform revenue
func ComputeTotals(items []RequestLineItem, calloutFee decimal.Decimal) Totals {
	customer := decimal.Zero
	provider := decimal.Zero
	for _, item := range items {
		customer = customer.Add(item.LineCustomerPrice)
		provider = provider.Add(item.LineProviderPrice)
	}
	customer = customer.Add(calloutFee)

	return Totals{
		CustomerPaid:     customer,
		ProviderPayout:   provider,
		CommissionEarned: customer.Sub(provider),
		CalloutFee:       calloutFee,
	}
}
