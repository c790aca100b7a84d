package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendzd/settlement/internal/app"
	"github.com/tendzd/settlement/internal/domain/settlement"
)

const cart = `{
	"vendors": {
		"electro": {"slug": "ELE", "freeShippingThreshold": "50.000"},
		"abaya": {"slug": "ABA", "commissionRate": "0.15"}
	},
	"items": [
		{"productId": "a1", "vendorId": "electro", "unitPrice": "30.000", "quantity": 2},
		{"productId": "b1", "vendorId": "abaya", "unitPrice": "12.750", "quantity": 1},
		{"productId": "a2", "vendorId": "electro", "unitPrice": "25.500", "quantity": 1},
		{"productId": "b2", "vendorId": "abaya", "unitPrice": "8.000", "quantity": 3}
	]
}`

func defaults() app.SettlementConfig {
	return app.SettlementConfig{
		VATRate:               "0.10",
		FlatShippingFee:       "5.000",
		FreeShippingThreshold: "100.000",
		CommissionRate:        "0.10",
	}
}

func TestReadCart(t *testing.T) {
	items, vendors, err := readCart(strings.NewReader(cart), settlement.NewEngine())
	require.NoError(t, err)

	require.Len(t, items, 4)
	assert.EqualValues(t, 12750, items[1].UnitPrice)
	assert.EqualValues(t, 50000, vendors["electro"].FreeShippingThreshold)
	assert.EqualValues(t, 100000, vendors["abaya"].FreeShippingThreshold, "default threshold")
	assert.False(t, vendors["electro"].CommissionRate.Valid)
	assert.True(t, vendors["abaya"].CommissionRate.Valid)
}

func TestReadCart_Malformed(t *testing.T) {
	_, _, err := readCart(strings.NewReader(`{"items": [`), settlement.NewEngine())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode cart")
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(cart))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	var out bytes.Buffer
	require.NoError(t, run(&out, path, "en", defaults()))

	s := out.String()
	assert.Contains(t, s, "Vendor electro")
	assert.Contains(t, s, "shipping         free (threshold 50.000 BHD)")
	assert.Contains(t, s, "shipping         5.000 BHD (free from 100.000 BHD)")
	assert.Contains(t, s, "commission 15%  5.011 BHD")
	assert.Contains(t, s, "vendor earnings  28.398 BHD")
	assert.Contains(t, s, "Total              127.250 BHD")
}

func TestRun_Arabic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte(cart), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(&out, path, "ar", defaults()))
	assert.Contains(t, out.String(), "١٢٧٫٢٥٠ د.ب")
}

func TestRun_BadConfig(t *testing.T) {
	cfg := defaults()
	cfg.VATRate = "1.5"

	err := run(&bytes.Buffer{}, "-", "en", cfg)
	require.ErrorIs(t, err, settlement.ErrInvalidVATRate)
}

func TestRun_InvalidItem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"items":[{"productId":"x","vendorId":"v","unitPrice":"1.000","quantity":0}]}`), 0o600))

	err := run(&bytes.Buffer{}, path, "en", defaults())
	require.ErrorIs(t, err, settlement.ErrInvalidLineItem)
}
