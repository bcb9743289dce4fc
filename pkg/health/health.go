// Package health tracks server readiness and serves the /healthz and
// /readyz endpoints of the HTTP transport.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Paths served by Mount.
const (
	LivenessPath  = "/healthz"
	ReadinessPath = "/readyz"
)

const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// Checker tracks the readiness state of the server and runs the named
// readiness checks. It is safe for concurrent use.
type Checker struct {
	state atomic.Int32

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a Checker in the starting state.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]CheckFunc)}
}

// AddCheck registers a readiness check. A failing check keeps /readyz at
// 503 even when the server is ready.
func (c *Checker) AddCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetReady transitions to the ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// Start marks the checker ready. It lets a Checker be registered as a
// lifecycle component.
func (c *Checker) Start(_ context.Context) error {
	c.SetReady()
	return nil
}

// Stop marks the checker draining.
func (c *Checker) Stop(_ context.Context) error {
	c.SetDraining()
	return nil
}

// IsReady reports whether the server accepts traffic.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns "starting", "ready" or "draining".
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// runChecks runs every registered check and returns the failures by name.
func (c *Checker) runChecks(ctx context.Context) map[string]string {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]CheckFunc, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	var failed map[string]string
	for i, check := range checks {
		if err := check(ctx); err != nil {
			if failed == nil {
				failed = make(map[string]string)
			}
			failed[names[i]] = err.Error()
		}
	}
	return failed
}

// LivenessHandler always answers 200 while the process runs.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler answers 200 when ready and every check passes, 503
// otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		if failed := c.runChecks(r.Context()); len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: failed})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
	}
}

// Mount registers the liveness and readiness handlers on mux.
func (c *Checker) Mount(mux *http.ServeMux) {
	mux.Handle(LivenessPath, c.LivenessHandler())
	mux.Handle(ReadinessPath, c.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
