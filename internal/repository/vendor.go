package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tendzd/settlement/internal/domain/checkout"
	"github.com/tendzd/settlement/internal/domain/settlement"
	"github.com/tendzd/settlement/internal/money"
)

const (
	getVendorConfigsSQL = `SELECT id, slug, free_shipping_threshold, commission_rate
		FROM vendors WHERE id = ANY($1)`

	upsertVendorSQL = `INSERT INTO vendors (id, slug, name, cr_number, vat_number,
		free_shipping_threshold, commission_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, name = EXCLUDED.name,
		cr_number = EXCLUDED.cr_number, vat_number = EXCLUDED.vat_number,
		free_shipping_threshold = EXCLUDED.free_shipping_threshold,
		commission_rate = EXCLUDED.commission_rate`
)

var _ checkout.VendorConfigRepository = (*VendorRepository)(nil)

// Vendor is a marketplace seller as stored.
type Vendor struct {
	ID        string
	Name      string
	CRNumber  string
	VATNumber string
	Config    settlement.VendorConfig
}

// VendorRepository reads vendor settlement parameters.
type VendorRepository struct {
	pool *pgxpool.Pool
}

// NewVendorRepository returns a VendorRepository that uses the given pool.
func NewVendorRepository(pool *pgxpool.Pool) *VendorRepository {
	return &VendorRepository{pool: pool}
}

// GetVendorConfigs returns the configuration of every known vendor in
// vendorIDs. Unknown IDs are left out of the map.
func (r *VendorRepository) GetVendorConfigs(ctx context.Context, vendorIDs []string) (map[string]settlement.VendorConfig, error) {
	rows, err := r.pool.Query(ctx, getVendorConfigsSQL, vendorIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query vendor configs")
	}
	defer rows.Close()

	configs := make(map[string]settlement.VendorConfig, len(vendorIDs))
	for rows.Next() {
		var (
			id        string
			cfg       settlement.VendorConfig
			threshold decimal.Decimal
		)
		if err := rows.Scan(&id, &cfg.Slug, &threshold, &cfg.CommissionRate); err != nil {
			return nil, errors.Wrap(err, "scan vendor config")
		}
		cfg.FreeShippingThreshold = money.FromDecimal(threshold)
		configs[id] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate vendor configs")
	}
	return configs, nil
}

// Upsert creates or replaces a vendor. Commission rates must fit the stored
// precision, see settlement.ValidateCommissionRate.
func (r *VendorRepository) Upsert(ctx context.Context, v Vendor) error {
	if rate := v.Config.CommissionRate; rate.Valid {
		if err := settlement.ValidateCommissionRate(rate.Decimal); err != nil {
			return errors.Wrapf(err, "vendor %q", v.ID)
		}
	}
	_, err := r.pool.Exec(ctx, upsertVendorSQL,
		v.ID, v.Config.Slug, v.Name, v.CRNumber, v.VATNumber,
		v.Config.FreeShippingThreshold.Decimal(), v.Config.CommissionRate,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert vendor %q", v.ID)
	}
	return nil
}

