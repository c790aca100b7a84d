// Command ordernum-audit scans order number exports for numbers that were
// issued more than once and optionally checks which of them are stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/tendzd/settlement/internal/repository"
)

func main() {
	var (
		dir         string
		pattern     string
		databaseURL string
		a           auditor
	)
	flag.StringVar(&dir, "dir", "exports", "directory containing order number exports")
	flag.StringVar(&pattern, "pattern", "*.gz", "glob selecting export files in dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL; when set, duplicates are looked up in orders")
	flag.UintVar(&a.capacity, "capacity", 10_000_000, "expected numbers per file, sizes the bloom filters")
	flag.Float64Var(&a.fpr, "fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	a.lg = lg

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rep, err := run(ctx, &a, dir, pattern, databaseURL)
	if err != nil {
		lg.Error("Audit failed", zap.Error(err))
		os.Exit(1)
	}
	if len(rep.Duplicates) > 0 {
		os.Exit(2)
	}
}

func run(ctx context.Context, a *auditor, dir, pattern, databaseURL string) (*report, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrap(err, "glob exports")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no exports match %s", filepath.Join(dir, pattern))
	}

	rep, err := a.run(ctx, files)
	if err != nil {
		return nil, err
	}
	a.lg.Info("Audit complete",
		zap.Int("files", rep.Files),
		zap.Uint64("numbers", rep.Scanned),
		zap.Uint64("malformed", rep.Malformed),
		zap.Int("duplicates", len(rep.Duplicates)),
	)

	dups := rep.Sorted()
	stored := map[string]bool{}
	if databaseURL != "" && len(dups) > 0 {
		pool, err := repository.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		found, err := repository.NewOrderRepository(pool).ExistingNumbers(ctx, dups)
		if err != nil {
			return nil, err
		}
		for _, n := range found {
			stored[n] = true
		}
	}

	for _, n := range dups {
		line := fmt.Sprintf("%s\t%d", n, rep.Duplicates[n])
		if stored[n] {
			line += "\tstored"
		}
		fmt.Println(line)
	}
	return rep, nil
}
