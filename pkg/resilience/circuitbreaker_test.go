package resilience

import (
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/errors"
)

var errDown = pkgerrors.Upstream("query searchd", errors.New("connection refused"))

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var states []State
	cb := NewCircuitBreaker("searchd", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		OnStateChange:    func(_ string, s State) { states = append(states, s) },
	})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errDown }); !errors.Is(err, errDown) {
			t.Fatalf("call %d err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s", cb.GetState())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if called {
		t.Error("open breaker let a call through")
	}
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, pkgerrors.ErrUpstream) {
		t.Errorf("open err = %v", err)
	}
	if len(states) != 1 || states[0] != StateOpen {
		t.Errorf("state changes = %v", states)
	}

	cb.Reset()
	if cb.GetState() != StateClosed || states[len(states)-1] != StateClosed {
		t.Errorf("reset state = %s, changes = %v", cb.GetState(), states)
	}
}

func TestBreakerIgnoresQueryErrors(t *testing.T) {
	cb := NewCircuitBreaker("searchd", CircuitBreakerConfig{FailureThreshold: 1})
	bad := fmt.Errorf("compile: %w", pkgerrors.ErrConfiguration)
	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return bad })
	}
	if cb.GetState() != StateClosed {
		t.Errorf("configuration errors opened the breaker: %s", cb.GetState())
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker("searchd", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Millisecond})
	cb.Execute(func() error { return errDown })
	time.Sleep(5 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s", cb.GetState())
	}
}
