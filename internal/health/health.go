// Package health implements the three pluggable health-check variants
// (HTTP, TCP, Command) behind a single polymorphic Checker contract, and the
// per-instance health loop that repeatedly invokes one.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

// Status is the three-valued result of a single probe. A Timeout result is
// never returned to a caller as a distinct terminal state — the health loop
// treats it identically to Unhealthy (spec.md §4.4) — but Checker
// implementations surface it distinctly so callers can log the cause.
type Status int

const (
	Healthy Status = iota
	Unhealthy
	Timeout
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Checker is a strategy that probes a single daemon instance. Implementations
// must be safe for concurrent use; the health loop calls Check once at a
// time from its own goroutine, but Describe may be called concurrently for
// diagnostics.
type Checker interface {
	Check(ctx context.Context) (Status, error)
	Describe() string
}

// New builds the Checker variant named by spec.Type. Called once per
// instance when its health loop starts.
func New(spec daemon.HealthCheckSpec) (Checker, error) {
	timeout := time.Duration(spec.TimeoutSecs) * time.Second
	switch spec.Type {
	case daemon.HealthHTTP:
		return &HTTPChecker{URL: spec.Target, Timeout: timeout}, nil
	case daemon.HealthTCP:
		return &TCPChecker{Address: spec.Target, Timeout: timeout}, nil
	case daemon.HealthCommand:
		return &CommandChecker{Command: spec.Target, Timeout: timeout}, nil
	default:
		return nil, fmt.Errorf("health: unknown check type %q", spec.Type)
	}
}
