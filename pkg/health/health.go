// Package health serves liveness and readiness probes.
//
// Checks run when a probe endpoint is hit, all at once, and each result is
// cached for a TTL so that frequent polling by an orchestrator does not hammer
// the database or Redis.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckFunc reports whether a dependency is healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells liveness checks apart from readiness checks.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

type probe struct {
	name    string
	kind    Kind
	timeout time.Duration
	check   CheckFunc

	mu        sync.Mutex
	checkedAt time.Time
	err       error
}

func (p *probe) result(ctx context.Context, now time.Time, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.checkedAt.IsZero() && now.Sub(p.checkedAt) < ttl {
		return p.err
	}
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	p.err = p.check(checkCtx)
	p.checkedAt = now
	return p.err
}

// Health holds the registered checks and the manual readiness switch.
type Health struct {
	ttl   time.Duration
	now   func() time.Time
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
}

// New creates a Health whose check results stay valid for ttl. The service
// starts not ready.
func New(ttl time.Duration) *Health {
	return &Health{ttl: ttl, now: time.Now}
}

// AddLivenessCheck registers a check that tells whether the process works.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(name, Liveness, timeout, check)
}

// AddReadinessCheck registers a check that tells whether the service can take
// traffic, typically a dependency ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(name, Readiness, timeout, check)
}

func (h *Health) add(name string, kind Kind, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probe{name: name, kind: kind, timeout: timeout, check: check})
}

// SetReady flips the manual readiness switch. It is turned off first during
// graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Failures runs every check of kind and returns the failing ones by name.
func (h *Health) Failures(ctx context.Context, kind Kind) map[string]string {
	h.mu.RLock()
	probes := make([]*probe, 0, len(h.probes))
	for _, p := range h.probes {
		if p.kind == kind {
			probes = append(probes, p)
		}
	}
	h.mu.RUnlock()

	now := h.now()
	errs := make([]error, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			errs[i] = p.result(ctx, now, h.ttl)
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]string)
	for i, err := range errs {
		if err != nil {
			failures[probes[i].name] = err.Error()
		}
	}
	return failures
}

// Ready reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) Ready(ctx context.Context) bool {
	return h.ready.Load() && len(h.Failures(ctx, Readiness)) == 0
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, h.Failures(r.Context(), Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := h.Failures(r.Context(), Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
