package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
	"github.com/cyber-boost/syspulse/internal/registry"
	"github.com/cyber-boost/syspulse/internal/restart"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	e := NewWithLogsDir(reg, filepath.Join(t.TempDir(), "logs"))
	if err := e.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	t.Cleanup(func() { e.Shutdown(2 * time.Second) })
	return e
}

func sleeperSpec(name string) daemon.Spec {
	s := daemon.Spec{
		Name:          name,
		Command:       []string{"sleep", "5"},
		RestartPolicy: restart.Policy{Kind: restart.Never},
	}
	s.ApplyDefaults()
	return s
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestAddStartStopRemove(t *testing.T) {
	e := newTestEngine(t)
	spec := sleeperSpec("worker")

	if _, err := e.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := e.Start("worker", true, 2*time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}

	status, err := e.Status("worker")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != lifecycle.Running || status.PID == nil {
		t.Fatalf("unexpected status after start: %+v", status)
	}

	if err := e.Stop("worker", false, 2*time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	status, err = e.Status("worker")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != lifecycle.Stopped {
		t.Fatalf("expected stopped after stop, got %s", status.State)
	}
	if status.PID != nil {
		t.Fatalf("expected pid cleared after stop, got %v", *status.PID)
	}
	if status.HealthStatus != daemon.HealthNotConfigured {
		t.Fatalf("expected health not_configured after stop of daemon with no health check, got %s", status.HealthStatus)
	}

	if err := e.Remove("worker", false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := e.Status("worker"); err == nil {
		t.Fatal("expected error after remove")
	}
}

func TestAddDuplicateFails(t *testing.T) {
	e := newTestEngine(t)
	spec := sleeperSpec("worker")
	if _, err := e.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.Add(spec); err == nil {
		t.Fatal("expected error adding duplicate")
	}
}

func TestRemoveActiveRequiresForce(t *testing.T) {
	e := newTestEngine(t)
	spec := sleeperSpec("worker")
	if _, err := e.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Start("worker", true, 2*time.Second); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := e.Remove("worker", false); err == nil {
		t.Fatal("expected remove without force to fail while running")
	}
	if err := e.Remove("worker", true); err != nil {
		t.Fatalf("remove with force: %v", err)
	}
}

func TestExitTriggersRestartOnAlwaysPolicy(t *testing.T) {
	e := newTestEngine(t)
	spec := daemon.Spec{
		Name:    "flappy",
		Command: []string{"sh", "-c", "exit 1"},
		RestartPolicy: restart.Policy{
			Kind:        restart.Always,
			BackoffBase: 0.05,
			BackoffMax:  0.05,
		},
	}
	spec.ApplyDefaults()

	if _, err := e.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Start("flappy", false, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		status, err := e.Status("flappy")
		return err == nil && status.RestartCount >= 2
	})

	status, err := e.Status("flappy")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PID != nil {
		t.Fatalf("expected pid cleared on every observed exit, got %v", *status.PID)
	}
	if status.HealthStatus != daemon.HealthNotConfigured {
		t.Fatalf("expected health not_configured on exit of daemon with no health check, got %s", status.HealthStatus)
	}
}

func TestExitClearsPIDAndHealthWithHealthCheckConfigured(t *testing.T) {
	e := newTestEngine(t)
	spec := daemon.Spec{
		Name:    "checked",
		Command: []string{"sh", "-c", "exit 1"},
		RestartPolicy: restart.Policy{
			Kind: restart.Never,
		},
		HealthCheck: &daemon.HealthCheckSpec{
			Type:   daemon.HealthCommand,
			Target: "true",
		},
	}
	spec.ApplyDefaults()

	if _, err := e.Add(spec); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Start("checked", false, 0); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitUntil(t, 5*time.Second, func() bool {
		status, err := e.Status("checked")
		return err == nil && status.State == lifecycle.Stopped
	})

	status, err := e.Status("checked")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PID != nil {
		t.Fatalf("expected pid cleared after crash-exit, got %v", *status.PID)
	}
	if status.HealthStatus != daemon.HealthUnknown {
		t.Fatalf("expected health unknown after exit of daemon with a health check configured, got %s", status.HealthStatus)
	}
}

func TestListReturnsAllInstances(t *testing.T) {
	e := newTestEngine(t)
	for _, name := range []string{"a", "b"} {
		if _, err := e.Add(sleeperSpec(name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if len(e.List()) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(e.List()))
	}
}
