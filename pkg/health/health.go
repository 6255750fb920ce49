// Package health provides Kubernetes-style liveness and readiness probe
// endpoints. Checks run on demand with a per-check timeout; results are
// cached briefly so probe floods cannot hammer dependencies.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component, nil meaning healthy.
type CheckFunc func(ctx context.Context) error

// cacheTTL is how long a check result is reused before re-running.
const cacheTTL = 2 * time.Second

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// run executes the check, reusing a recent result.
func (c *check) run(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastRun) < cacheTTL {
		return c.lastErr
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.lastErr = c.fn(checkCtx)
	c.lastRun = time.Now()
	return c.lastErr
}

// Health serves liveness and readiness probes for a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
}

// New creates a Health. The service starts not ready; call SetReady(true)
// once initialization completes and SetReady(false) to drain on shutdown.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a liveness check (is the process functional).
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, &check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a readiness check (can the service take
// traffic, e.g. database connectivity).
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, &check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness gate.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness check
// passes.
func (h *Health) IsReady(ctx context.Context) bool {
	if !h.ready.Load() {
		return false
	}
	return len(h.failures(ctx, h.snapshot(&h.readiness))) == 0
}

// LiveEndpoint handles /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := h.failures(r.Context(), h.snapshot(&h.liveness))
	writeStatus(w, failures)
}

// ReadyEndpoint handles /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	failures := h.failures(r.Context(), h.snapshot(&h.readiness))
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func (h *Health) snapshot(list *[]*check) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*check, len(*list))
	copy(out, *list)
	return out
}

func (h *Health) failures(ctx context.Context, checks []*check) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if err := c.run(ctx); err != nil {
			failures[c.name] = err.Error()
		}
	}
	return failures
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	resp := statusResponse{Status: "ok"}
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
