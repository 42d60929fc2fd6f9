// Package health probes the services searchd depends on (the engine,
// Redis, PostgreSQL) and serves the combined result to liveness and
// readiness probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/resilience"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

const defaultCheckTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Latency string         `json:"latency,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Report is the outcome of one Run. Status is the worst component status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Checker runs registered checks concurrently, each under its own timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: defaultCheckTimeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// SetTimeout bounds every check; d <= 0 restores the default.
func (c *Checker) SetTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultCheckTimeout
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, check := range checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			result := check(cctx)
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	report := Report{
		Status:     worst(results),
		Components: results,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if report.Status != StatusUp {
		c.logger.Warn("health check not up", "status", report.Status)
	}
	return report
}

func worst(results map[string]ComponentHealth) Status {
	status := StatusUp
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers 503 only when a required component is down. A
// degraded report still serves traffic because the failing parts are
// optional (cache, snippet store).
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// PingCheck turns a ping function into a Check. A failing ping marks the
// component down, or degraded when optional is set.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failedStatus(optional), Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Breaker is satisfied by *resilience.CircuitBreaker.
type Breaker interface {
	Name() string
	GetState() resilience.State
}

// SearchdCheck reports the engine together with the breaker guarding it.
// A reachable engine behind an open or half-open breaker is degraded, not
// down, so readiness keeps routing the traffic that closes the breaker.
// cb may be nil.
func SearchdCheck(ping func(ctx context.Context) error, cb Breaker) Check {
	return func(ctx context.Context) ComponentHealth {
		var details map[string]any
		state := resilience.StateClosed
		if cb != nil {
			state = cb.GetState()
			details = map[string]any{"breaker": cb.Name(), "breaker_state": state.String()}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error(), Details: details}
		}
		if state != resilience.StateClosed {
			return ComponentHealth{Status: StatusDegraded, Message: "circuit breaker is " + state.String(), Details: details}
		}
		return ComponentHealth{Status: StatusUp, Details: details}
	}
}

func failedStatus(optional bool) Status {
	if optional {
		return StatusDegraded
	}
	return StatusDown
}
