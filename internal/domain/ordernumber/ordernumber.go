// Package ordernumber generates the human-readable order references shown to
// shoppers and vendors.
//
// Neither GenerateOrderNumber nor GenerateVendorOrderNumber guarantees
// uniqueness across concurrent calls. Duplicate detection belongs to the
// order store, which retries with a fresh number. Generator.VendorOrderNumber
// keeps the vendor display format but draws its digits from a monotonic
// sequence instead of the wall clock.
package ordernumber

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

const (
	orderPrefix   = "BH"
	suffixLen     = 4
	alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	vendorPrefix  = 3
	vendorDigits  = 6
	vendorModulus = 1_000_000
)

// GenerateOrderNumber returns "BH" + YYMMDD + 4 random uppercase alphanumerics,
// e.g. "BH261019K7Q2". The date is taken from now as given; callers pick the
// time zone.
func GenerateOrderNumber(now time.Time) string {
	var b strings.Builder
	b.Grow(len(orderPrefix) + 6 + suffixLen)
	b.WriteString(orderPrefix)
	b.WriteString(now.Format("060102"))
	for range suffixLen {
		// Top-level math/rand/v2 functions are safe for concurrent use.
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// IsOrderNumber reports whether s has the shape produced by
// GenerateOrderNumber, including a valid calendar date.
func IsOrderNumber(s string) bool {
	if len(s) != len(orderPrefix)+6+suffixLen || !strings.HasPrefix(s, orderPrefix) {
		return false
	}
	date := s[len(orderPrefix) : len(orderPrefix)+6]
	if _, err := time.Parse("060102", date); err != nil {
		return false
	}
	for i := len(orderPrefix) + 6; i < len(s); i++ {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}

// GenerateVendorOrderNumber returns the first three characters of the vendor
// slug uppercased, followed by the last six digits of now in epoch millis.
// Slugs shorter than three characters are used whole.
func GenerateVendorOrderNumber(vendorSlug string, now time.Time) string {
	return vendorNumber(vendorSlug, uint64(now.UnixMilli()))
}

func vendorNumber(slug string, n uint64) string {
	return fmt.Sprintf("%s%0*d", slugPrefix(slug), vendorDigits, n%vendorModulus)
}

func slugPrefix(slug string) string {
	slug = strings.TrimSpace(slug)
	if utf8.RuneCountInString(slug) > vendorPrefix {
		slug = string([]rune(slug)[:vendorPrefix])
	}
	return strings.ToUpper(slug)
}

// Counter hands out monotonically increasing values per sequence name.
type Counter interface {
	Next(ctx context.Context, name string) (uint64, error)
}

// Generator produces order and vendor-order numbers with an injected clock
// and sequence counter.
type Generator struct {
	counter Counter
	now     func() time.Time
}

// NewGenerator creates a Generator. A nil clock defaults to time.Now.
func NewGenerator(counter Counter, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{counter: counter, now: now}
}

// OrderNumber returns a fresh order number for the current time.
func (g *Generator) OrderNumber() string {
	return GenerateOrderNumber(g.now())
}

// VendorOrderNumber returns a vendor order number in the same display format
// as GenerateVendorOrderNumber, taking the digits from the vendor's sequence.
// Numbers repeat only after a million orders of the same vendor prefix.
func (g *Generator) VendorOrderNumber(ctx context.Context, vendorSlug string) (string, error) {
	prefix := slugPrefix(vendorSlug)
	seq, err := g.counter.Next(ctx, "vendor_order:"+prefix)
	if err != nil {
		return "", errors.Wrap(err, "next vendor order sequence")
	}
	return vendorNumber(prefix, seq), nil
}
