// Package sequence provides the shared counters behind vendor order numbers
// and rate limit windows.
package sequence

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local window counter for rate limiting when no Redis
// is configured. Counts are lost on restart and not shared between
// instances.
type Memory struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	hits    uint64
	expires time.Time
}

// NewMemory returns an empty in-memory counter.
func NewMemory() *Memory {
	return &Memory{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

// Hit counts an event under name; the count resets once window has passed
// since the first hit.
func (m *Memory) Hit(_ context.Context, name string, d time.Duration) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, w := range m.windows {
		if !now.Before(w.expires) {
			delete(m.windows, k)
		}
	}
	w, ok := m.windows[name]
	if !ok {
		w.expires = now.Add(d)
	}
	w.hits++
	m.windows[name] = w
	return w.hits, nil
}
