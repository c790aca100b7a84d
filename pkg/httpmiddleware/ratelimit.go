package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// WindowCounter counts hits per key in windows that expire on their own.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (uint64, error)
}

// RateLimitConfig configures the fixed-window rate limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the host part of RemoteAddr,
	// so put chi's middleware.RealIP in front when running behind a proxy.
	KeyFunc func(*http.Request) string
	// Now defaults to time.Now.
	Now func() time.Time
}

// RateLimit rejects clients that exceed cfg.Max requests per cfg.Window with
// 429. Counting happens in counter, so limits hold across replicas sharing
// it. When the counter fails the request is let through.
func RateLimit(counter WindowCounter, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteHost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := cfg.Now()
			start := now.Truncate(cfg.Window)
			reset := start.Add(cfg.Window)
			key := "ratelimit:" + cfg.KeyFunc(r) + ":" + strconv.FormatInt(start.Unix(), 10)

			hits, err := counter.Hit(r.Context(), key, cfg.Window)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := max(cfg.Max-int(hits), 0)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if hits > uint64(cfg.Max) {
				retry := int(math.Ceil(reset.Sub(now).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
