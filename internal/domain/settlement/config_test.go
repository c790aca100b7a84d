package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendzd/settlement/internal/money"
)

func TestEngine_SettleUsesDefaultThreshold(t *testing.T) {
	e := NewEngine()
	items := []LineItem{
		{ProductID: "p1", VendorID: "configured", UnitPrice: 20000, Quantity: 1},
		{ProductID: "p2", VendorID: "unknown", UnitPrice: 20000, Quantity: 1},
	}
	vendors := map[string]VendorConfig{
		"configured": {FreeShippingThreshold: 10000},
	}

	s, err := e.Settle(items, vendors)
	require.NoError(t, err)
	require.Len(t, s.VendorGroups, 2)

	assert.Equal(t, money.Fils(10000), s.VendorGroups[0].FreeShippingThreshold)
	assert.Equal(t, money.Zero, s.VendorGroups[0].ShippingFee)

	assert.Equal(t, DefaultFreeShippingThreshold, s.VendorGroups[1].FreeShippingThreshold)
	assert.Equal(t, DefaultFlatShippingFee, s.VendorGroups[1].ShippingFee)
}

func TestComputeSettlement_MissingVendorShipsFree(t *testing.T) {
	s, err := ComputeSettlement([]LineItem{
		{ProductID: "p", VendorID: "unknown", UnitPrice: 1000, Quantity: 1},
	}, map[string]VendorConfig{}, DefaultVATRate, DefaultFlatShippingFee)
	require.NoError(t, err)
	assert.True(t, s.VendorGroups[0].QualifiesForFreeShipping)
}

func TestEngine_CommissionSplits(t *testing.T) {
	e := NewEngine()
	items := []LineItem{
		{ProductID: "p1", VendorID: "default", UnitPrice: 110000, Quantity: 1},
		{ProductID: "p2", VendorID: "premium", UnitPrice: 110000, Quantity: 1},
	}
	vendors := map[string]VendorConfig{
		"default": {FreeShippingThreshold: 0},
		"premium": {
			FreeShippingThreshold: 0,
			CommissionRate:        decimal.NewNullDecimal(decimal.RequireFromString("0.15")),
		},
	}

	s, err := e.Settle(items, vendors)
	require.NoError(t, err)

	splits, err := e.CommissionSplits(s, vendors)
	require.NoError(t, err)
	require.Len(t, splits, 2)

	assert.Equal(t, "default", splits[0].VendorID)
	assert.True(t, DefaultCommissionRate.Equal(splits[0].CommissionRate))
	assert.Equal(t, "10.000", splits[0].CommissionAmount.String())
	assert.Equal(t, "90.000", splits[0].VendorEarnings.String())

	assert.Equal(t, "premium", splits[1].VendorID)
	assert.Equal(t, "15.000", splits[1].CommissionAmount.String())
	assert.Equal(t, "85.000", splits[1].VendorEarnings.String())
}

func TestEngine_CommissionSplitsRejectsBadVendorRate(t *testing.T) {
	e := NewEngine()
	vendors := map[string]VendorConfig{
		"v1": {CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("1.5"))},
	}
	s, err := e.Settle([]LineItem{{ProductID: "p", VendorID: "v1", UnitPrice: 1000, Quantity: 1}}, vendors)
	require.NoError(t, err)

	_, err = e.CommissionSplits(s, vendors)
	require.ErrorIs(t, err, ErrInvalidCommissionRate)
}

func TestEngine_CommissionRateExplicitZero(t *testing.T) {
	e := NewEngine()
	rate := e.CommissionRate(VendorConfig{CommissionRate: decimal.NewNullDecimal(decimal.Zero)})
	assert.True(t, rate.IsZero())
	assert.True(t, DefaultCommissionRate.Equal(e.CommissionRate(VendorConfig{})))
}

func TestValidateCommissionRate(t *testing.T) {
	tests := []struct {
		rate  string
		valid bool
	}{
		{rate: "0", valid: true},
		{rate: "0.15", valid: true},
		{rate: "0.1234", valid: true},
		{rate: "0.12340", valid: true},
		{rate: "1", valid: true},
		{rate: "0.12345"},
		{rate: "-0.01"},
		{rate: "1.0001"},
	}
	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			err := ValidateCommissionRate(decimal.RequireFromString(tt.rate))
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidCommissionRate)
		})
	}
}
