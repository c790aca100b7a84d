// Command settle prints the settlement of a cart file without touching any
// database. The file may be gzip-compressed.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/tendzd/settlement/internal/app"
	"github.com/tendzd/settlement/internal/domain/settlement"
)

func main() {
	var (
		in     string
		locale string
		cfg    app.SettlementConfig
	)
	flag.StringVar(&in, "in", "-", "cart JSON file, - for stdin; .gz files are decompressed")
	flag.StringVar(&locale, "locale", "en", "display locale, en or ar")
	flag.StringVar(&cfg.VATRate, "vat-rate", settlement.DefaultVATRate.String(), "VAT rate")
	flag.StringVar(&cfg.FlatShippingFee, "shipping-fee", settlement.DefaultFlatShippingFee.String(), "flat shipping fee in BHD")
	flag.StringVar(&cfg.FreeShippingThreshold, "free-shipping", settlement.DefaultFreeShippingThreshold.String(), "default free-shipping threshold in BHD")
	flag.StringVar(&cfg.CommissionRate, "commission-rate", settlement.DefaultCommissionRate.String(), "default commission rate")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(os.Stdout, in, locale, cfg); err != nil {
		lg.Error("Settle failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(w io.Writer, in, locale string, cfg app.SettlementConfig) error {
	engine, err := cfg.Engine()
	if err != nil {
		return err
	}

	r, closeFn, err := open(in)
	if err != nil {
		return err
	}
	defer closeFn()

	items, vendors, err := readCart(r, engine)
	if err != nil {
		return err
	}
	s, err := engine.Settle(items, vendors)
	if err != nil {
		return errors.Wrap(err, "settle")
	}
	splits, err := engine.CommissionSplits(s, vendors)
	if err != nil {
		return errors.Wrap(err, "commission")
	}
	return render(w, s, splits, locale)
}

func open(path string) (io.Reader, func(), error) {
	var (
		r       io.Reader = os.Stdin
		closers []io.Closer
	)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open %s", path)
		}
		r, closers = f, append(closers, f)
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(r)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, errors.Wrapf(err, "gzip reader for %s", path)
		}
		r, closers = gz, append(closers, gz)
	}
	return r, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}, nil
}
