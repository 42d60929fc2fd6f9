package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/resilience"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"all up", map[string]Check{"searchd": PingCheck(ok, false), "redis": PingCheck(ok, true)}, StatusUp},
		{"optional down", map[string]Check{"searchd": PingCheck(ok, false), "redis": PingCheck(fail, true)}, StatusDegraded},
		{"required down", map[string]Check{"searchd": PingCheck(fail, false), "redis": PingCheck(fail, true)}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %v", report.Components)
			}
		})
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("searchd", PingCheck(fail, false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Components["searchd"].Message != "connection refused" {
		t.Errorf("report = %+v", report)
	}
}

type fixedBreaker struct{ state resilience.State }

func (b fixedBreaker) Name() string               { return "searchd" }
func (b fixedBreaker) GetState() resilience.State { return b.state }

func TestSearchdCheck(t *testing.T) {
	tests := []struct {
		name  string
		ping  func(context.Context) error
		cb    Breaker
		want  Status
		state string
	}{
		{"no breaker", ok, nil, StatusUp, ""},
		{"closed", ok, fixedBreaker{resilience.StateClosed}, StatusUp, "closed"},
		{"open but reachable", ok, fixedBreaker{resilience.StateOpen}, StatusDegraded, "open"},
		{"half-open", ok, fixedBreaker{resilience.StateHalfOpen}, StatusDegraded, "half-open"},
		{"unreachable", fail, fixedBreaker{resilience.StateOpen}, StatusDown, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchdCheck(tt.ping, tt.cb)(context.Background())
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if tt.state != "" && got.Details["breaker_state"] != tt.state {
				t.Errorf("details = %v", got.Details)
			}
		})
	}
}

func TestReadyServesWhenDegraded(t *testing.T) {
	c := NewChecker()
	c.Register("searchd", PingCheck(ok, false))
	c.Register("redis", PingCheck(fail, true))
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(10 * time.Millisecond)
	c.Register("searchd", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false))
	if report := c.Run(context.Background()); report.Status != StatusDown {
		t.Errorf("status = %s", report.Status)
	}
}
