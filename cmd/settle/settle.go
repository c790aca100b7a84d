package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
)

// cartFile is the input document: the cart plus the vendors it references.
type cartFile struct {
	Vendors map[string]vendorEntry `json:"vendors"`
	Items   []itemEntry            `json:"items"`
}

type vendorEntry struct {
	Slug                  string              `json:"slug"`
	FreeShippingThreshold *decimal.Decimal    `json:"freeShippingThreshold"`
	CommissionRate        decimal.NullDecimal `json:"commissionRate"`
}

type itemEntry struct {
	ProductID string          `json:"productId"`
	VendorID  string          `json:"vendorId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func readCart(r io.Reader, engine settlement.Engine) ([]settlement.LineItem, map[string]settlement.VendorConfig, error) {
	var doc cartFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, errors.Wrap(err, "decode cart")
	}

	vendors := make(map[string]settlement.VendorConfig, len(doc.Vendors))
	for id, v := range doc.Vendors {
		cfg := settlement.VendorConfig{
			Slug:                  v.Slug,
			FreeShippingThreshold: engine.DefaultFreeShippingThreshold,
			CommissionRate:        v.CommissionRate,
		}
		if v.FreeShippingThreshold != nil {
			t, err := money.Exact(*v.FreeShippingThreshold)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "vendor %s threshold", id)
			}
			cfg.FreeShippingThreshold = t
		}
		vendors[id] = cfg
	}

	items := make([]settlement.LineItem, len(doc.Items))
	for i, it := range doc.Items {
		price, err := money.Exact(it.UnitPrice)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "item %d price", i)
		}
		items[i] = settlement.LineItem{
			ProductID: it.ProductID,
			VendorID:  it.VendorID,
			UnitPrice: price,
			Quantity:  it.Quantity,
		}
	}
	return items, vendors, nil
}

// render prints the settlement as a plain-text statement.
func render(w io.Writer, s settlement.OrderSettlement, splits []settlement.CommissionSplit, locale string) error {
	var b strings.Builder
	f := func(v money.Fils) string { return money.FormatCurrency(v, locale) }

	for i, g := range s.VendorGroups {
		fmt.Fprintf(&b, "Vendor %s\n", g.VendorID)
		for _, it := range g.Items {
			line, _ := it.Total() // checked by the engine
			fmt.Fprintf(&b, "  %-20s %3d x %s = %s\n", it.ProductID, it.Quantity,
				f(it.UnitPrice), f(line))
		}
		fmt.Fprintf(&b, "  items total      %s\n", f(g.ItemsTotal))
		fmt.Fprintf(&b, "  ex VAT           %s\n", f(g.SubtotalExVAT))
		fmt.Fprintf(&b, "  VAT              %s\n", f(g.VATAmount))
		if g.QualifiesForFreeShipping {
			fmt.Fprintf(&b, "  shipping         free (threshold %s)\n", f(g.FreeShippingThreshold))
		} else {
			fmt.Fprintf(&b, "  shipping         %s (free from %s)\n", f(g.ShippingFee), f(g.FreeShippingThreshold))
		}
		fmt.Fprintf(&b, "  vendor total     %s\n", f(g.VendorTotal))
		if i < len(splits) {
			sp := splits[i]
			fmt.Fprintf(&b, "  commission %s%%  %s\n", sp.CommissionRate.Mul(decimal.NewFromInt(100)).String(), f(sp.CommissionAmount))
			fmt.Fprintf(&b, "  vendor earnings  %s\n", f(sp.VendorEarnings))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Subtotal ex VAT    %s\n", f(s.OverallSubtotalExVAT))
	fmt.Fprintf(&b, "VAT                %s\n", f(s.OverallVAT))
	fmt.Fprintf(&b, "Shipping           %s\n", f(s.OverallShipping))
	fmt.Fprintf(&b, "Total              %s\n", f(s.OverallTotal))

	_, err := io.WriteString(w, b.String())
	return err
}
