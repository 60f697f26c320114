package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceLine(t *testing.T) {
	entry := PricingEntry{
		CustomerPrice:     d("30.00"),
		ProviderPrice:     d("20.00"),
		ColorSurcharge:    d("5.00"),
		IsWhiteApplicable: true,
	}

	line := entry.PriceLine("sofa", "3-seater", 2, true)
	assert.True(t, line.UnitPrice.Equal(d("35")))
	assert.True(t, line.LineCustomerPrice.Equal(d("70")))
	assert.True(t, line.LineProviderPrice.Equal(d("40")))
	assert.True(t, line.LineCommission.Equal(d("30")))

	plain := entry.PriceLine("sofa", "3-seater", 2, false)
	assert.True(t, plain.LineCustomerPrice.Equal(d("60")))
	assert.True(t, plain.ColorSurcharge.IsZero())

	entry.IsWhiteApplicable = false
	notApplicable := entry.PriceLine("rug", "small", 1, true)
	assert.True(t, notApplicable.LineCustomerPrice.Equal(d("30")), "surcharge only when applicable")
}

func TestComputeTotals_RoundTrip(t *testing.T) {
	sofa := PricingEntry{CustomerPrice: d("30"), ProviderPrice: d("20"), ColorSurcharge: d("5"), IsWhiteApplicable: true}
	rug := PricingEntry{CustomerPrice: d("12.50"), ProviderPrice: d("8.00")}

	items := []RequestLineItem{
		sofa.PriceLine("sofa", "3-seater", 1, true),
		rug.PriceLine("rug", "small", 3, false),
	}
	fee := d("25")

	totals := ComputeTotals(items, fee)
	// 35 + 37.50 + 25
	assert.True(t, totals.CustomerPaid.Equal(d("97.50")), totals.CustomerPaid.String())
	assert.True(t, totals.ProviderPayout.Equal(d("44")))
	assert.True(t, totals.CommissionEarned.Equal(d("53.50")))

	req := ServiceRequest{LineItems: items}
	again := ComputeTotals(req.LineItems, fee)
	assert.True(t, again.CustomerPaid.Equal(totals.CustomerPaid), "recompute from snapshot must match")
}

func TestComputeTotals_NoItems(t *testing.T) {
	totals := ComputeTotals(nil, d("25"))
	assert.True(t, totals.CustomerPaid.Equal(d("25")))
	assert.True(t, totals.ProviderPayout.IsZero())
}
