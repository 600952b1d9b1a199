// Package history defines the event shape exported to external analytics
// and audit systems (ClickHouse, OpenSearch, Postgres, SQLite) whenever a
// daemon starts or stops. The engine owns deciding when to fire an event;
// this package only describes the event and the Sink contract a backend
// must satisfy.
package history

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

// EventType is the kind of lifecycle transition being recorded.
type EventType string

const (
	EventStart EventType = "start"
	EventStop  EventType = "stop"
)

// Record is a flattened, backend-friendly view of one daemon instance at
// the moment an event fired. It intentionally does not embed daemon.Instance
// directly so that sink implementations can bind columns/fields by name
// without reaching into nested pointers.
type Record struct {
	Name         string    `json:"name"`
	InstanceID   string    `json:"instance_id"`
	PID          int       `json:"pid"`
	LastStatus   string    `json:"last_status"`
	StartedAt    time.Time `json:"started_at"`
	StoppedAt    time.Time `json:"stopped_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	RestartCount uint32    `json:"restart_count"`
	ExitErr      string    `json:"exit_err,omitempty"`
	SpecJSON     string    `json:"spec_json,omitempty"`
}

// Event is what gets handed to a Sink.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events. Implementations must be safe
// for concurrent use, since the engine calls Send from whichever goroutine
// observed the transition.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// FromInstance builds a Record from a daemon's current snapshot and the
// spec it was materialized from. PID, StartedAt and StoppedAt fall back to
// zero values when the instance hasn't reached that point yet.
func FromInstance(inst *daemon.Instance, spec daemon.Spec) Record {
	rec := Record{
		Name:         inst.SpecName,
		InstanceID:   inst.ID,
		LastStatus:   string(inst.State),
		UpdatedAt:    time.Now().UTC(),
		RestartCount: inst.RestartCount,
	}
	if inst.PID != nil {
		rec.PID = *inst.PID
	}
	if inst.StartedAt != nil {
		rec.StartedAt = inst.StartedAt.UTC()
	}
	if inst.StoppedAt != nil {
		rec.StoppedAt = inst.StoppedAt.UTC()
	}
	if inst.ExitCode != nil && *inst.ExitCode != 0 {
		rec.ExitErr = "exit code " + strconv.Itoa(*inst.ExitCode)
	}
	if b, err := json.Marshal(spec); err == nil {
		rec.SpecJSON = string(b)
	}
	return rec
}
