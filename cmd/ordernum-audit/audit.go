package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tendzd/settlement/internal/domain/ordernumber"
)

// auditor finds order numbers issued more than once across a set of exports.
//
// Exports are too large to hold in memory, so a first pass builds one bloom
// filter per file and collects numbers that may repeat. A second pass
// counts only those candidates exactly, which removes bloom false positives.
type auditor struct {
	lg       *zap.Logger
	capacity uint
	fpr      float64
}

// report is the outcome of an audit.
type report struct {
	Files     int
	Scanned   uint64
	Malformed uint64
	// Duplicates maps each repeated number to its total occurrences.
	Duplicates map[string]int
}

// Sorted returns the duplicate numbers in ascending order.
func (r *report) Sorted() []string {
	out := make([]string, 0, len(r.Duplicates))
	for n := range r.Duplicates {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type fileStats struct {
	scanned    uint64
	malformed  uint64
	candidates map[string]struct{}
}

func (a *auditor) run(ctx context.Context, files []string) (*report, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	stats := make([]fileStats, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(a.capacity, a.fpr)
			st := fileStats{candidates: make(map[string]struct{})}
			err := streamFile(gctx, path, func(n string) {
				if !ordernumber.IsOrderNumber(n) {
					st.malformed++
					return
				}
				st.scanned++
				if filter.TestAndAddString(n) {
					st.candidates[n] = struct{}{}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			a.lg.Info("Indexed export",
				zap.String("file", path),
				zap.Uint64("numbers", st.scanned),
				zap.Uint64("malformed", st.malformed),
			)
			filters[i], stats[i] = filter, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(files) > 1 {
		g, gctx = errgroup.WithContext(ctx)
		for i, path := range files {
			g.Go(func() error {
				return streamFile(gctx, path, func(n string) {
					if !ordernumber.IsOrderNumber(n) {
						return
					}
					for j, f := range filters {
						if j != i && f.TestString(n) {
							stats[i].candidates[n] = struct{}{}
							return
						}
					}
				})
			})
		}
		if err := g.Wait(); err != nil {
			return nil, errors.Wrap(err, "cross-check exports")
		}
	}

	rep := &report{Files: len(files), Duplicates: make(map[string]int)}
	candidates := make(map[string]struct{})
	for _, st := range stats {
		rep.Scanned += st.scanned
		rep.Malformed += st.malformed
		for n := range st.candidates {
			candidates[n] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return rep, nil
	}
	a.lg.Info("Confirming candidates", zap.Int("candidates", len(candidates)))

	counts := make([]map[string]int, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			c := make(map[string]int)
			if err := streamFile(gctx, path, func(n string) {
				if _, ok := candidates[n]; ok {
					c[n]++
				}
			}); err != nil {
				return errors.Wrapf(err, "confirm %s", path)
			}
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := make(map[string]int, len(candidates))
	for _, c := range counts {
		for n, k := range c {
			total[n] += k
		}
	}
	for n, k := range total {
		if k > 1 {
			rep.Duplicates[n] = k
		}
	}
	return rep, nil
}

// streamFile calls fn for every non-blank line of path, decompressing .gz
// files on the fly.
func streamFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
