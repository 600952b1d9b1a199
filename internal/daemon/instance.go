package daemon

import (
	"time"

	"github.com/google/uuid"

	"github.com/cyber-boost/syspulse/internal/lifecycle"
)

// HealthStatus is the last-observed health of a running instance.
type HealthStatus string

const (
	HealthUnknown      HealthStatus = "unknown"
	HealthHealthy      HealthStatus = "healthy"
	HealthUnhealthy    HealthStatus = "unhealthy"
	HealthNotConfigured HealthStatus = "not_configured"
)

// Instance is the engine-owned runtime mirror of a Spec: exactly one per
// registered spec, materialized by Add and destroyed only together with its
// spec by Remove.
type Instance struct {
	ID            string            `json:"id"`
	SpecName      string            `json:"spec_name"`
	State         lifecycle.State   `json:"state"`
	PID           *int              `json:"pid,omitempty"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	StoppedAt     *time.Time        `json:"stopped_at,omitempty"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	RestartCount  uint32            `json:"restart_count"`
	HealthStatus  HealthStatus      `json:"health_status"`
	StdoutLog     string            `json:"stdout_log,omitempty"`
	StderrLog     string            `json:"stderr_log,omitempty"`
}

// NewInstance materializes a fresh Stopped instance for specName, minting a
// new opaque ID as spec.md §3 requires ("fresh opaque identifier minted
// each time the daemon is created").
func NewInstance(specName string) *Instance {
	return &Instance{
		ID:           uuid.New().String(),
		SpecName:     specName,
		State:        lifecycle.Stopped,
		HealthStatus: HealthUnknown,
	}
}

// Clone returns a deep-enough copy safe to hand to a reader while the
// engine's instance lock is held only for the duration of the copy.
func (i *Instance) Clone() *Instance {
	cp := *i
	if i.PID != nil {
		pid := *i.PID
		cp.PID = &pid
	}
	if i.StartedAt != nil {
		t := *i.StartedAt
		cp.StartedAt = &t
	}
	if i.StoppedAt != nil {
		t := *i.StoppedAt
		cp.StoppedAt = &t
	}
	if i.ExitCode != nil {
		e := *i.ExitCode
		cp.ExitCode = &e
	}
	return &cp
}
