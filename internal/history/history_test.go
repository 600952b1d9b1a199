package history

import (
	"context"
	"testing"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

type fakeSink struct {
	events []Event
	closed bool
}

func (f *fakeSink) Send(ctx context.Context, e Event) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestFromInstanceMapsFields(t *testing.T) {
	pid := 4242
	started := time.Now().Add(-time.Minute).UTC()
	inst := &daemon.Instance{
		ID:           "inst-1",
		SpecName:     "web",
		State:        "running",
		PID:          &pid,
		StartedAt:    &started,
		RestartCount: 2,
	}
	spec := daemon.Spec{Name: "web", Command: []string{"web-server"}}

	rec := FromInstance(inst, spec)

	if rec.Name != "web" || rec.InstanceID != "inst-1" {
		t.Fatalf("unexpected identity fields: %+v", rec)
	}
	if rec.PID != pid {
		t.Fatalf("expected pid %d, got %d", pid, rec.PID)
	}
	if rec.LastStatus != "running" {
		t.Fatalf("expected last_status running, got %s", rec.LastStatus)
	}
	if rec.RestartCount != 2 {
		t.Fatalf("expected restart count 2, got %d", rec.RestartCount)
	}
	if rec.SpecJSON == "" {
		t.Fatal("expected spec_json to be populated")
	}
}

func TestFromInstanceExitCode(t *testing.T) {
	code := 1
	inst := &daemon.Instance{SpecName: "web", State: "failed", ExitCode: &code}
	rec := FromInstance(inst, daemon.Spec{Name: "web"})
	if rec.ExitErr == "" {
		t.Fatal("expected exit_err to be set for a non-zero exit code")
	}
}

func TestSinkReceivesEvent(t *testing.T) {
	sink := &fakeSink{}
	rec := FromInstance(daemon.NewInstance("web"), daemon.Spec{Name: "web"})

	if err := sink.Send(context.Background(), Event{Type: EventStart, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Type != EventStart {
		t.Fatalf("expected one start event, got %+v", sink.events)
	}
	if err := sink.Close(); err != nil || !sink.closed {
		t.Fatal("expected sink to close cleanly")
	}
}
