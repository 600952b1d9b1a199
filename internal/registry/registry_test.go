package registry

import (
	"path/filepath"
	"testing"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
	"github.com/cyber-boost/syspulse/internal/restart"
	"github.com/cyber-boost/syspulse/internal/syserr"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sampleSpec(name string) daemon.Spec {
	s := daemon.Spec{
		Name:          name,
		Command:       []string{"sleep", "1"},
		RestartPolicy: restart.Policy{Kind: restart.Never},
	}
	s.ApplyDefaults()
	return s
}

func TestRegisterAndGetSpec(t *testing.T) {
	r := openTestRegistry(t)
	spec := sampleSpec("web")

	if err := r.Register(spec); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.GetSpec("web")
	if err != nil {
		t.Fatalf("get spec: %v", err)
	}
	if got.Name != spec.Name || len(got.Command) != len(spec.Command) {
		t.Fatalf("round-tripped spec mismatch: %+v", got)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := openTestRegistry(t)
	spec := sampleSpec("web")

	if err := r.Register(spec); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := r.Register(spec)
	if err == nil {
		t.Fatal("expected error registering duplicate name")
	}
	if syserr.CodeOf(err) != syserr.CodeDaemonAlreadyExists {
		t.Fatalf("code = %v, want CodeDaemonAlreadyExists", syserr.CodeOf(err))
	}
}

func TestGetSpecMissing(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.GetSpec("ghost")
	if syserr.CodeOf(err) != syserr.CodeDaemonNotFound {
		t.Fatalf("code = %v, want CodeDaemonNotFound", syserr.CodeOf(err))
	}
}

func TestUnregisterRemovesSpecAndState(t *testing.T) {
	r := openTestRegistry(t)
	spec := sampleSpec("web")
	if err := r.Register(spec); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst := daemon.NewInstance("web")
	if err := r.UpdateState(inst); err != nil {
		t.Fatalf("update state: %v", err)
	}

	if err := r.Unregister("web"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, err := r.GetSpec("web"); syserr.CodeOf(err) != syserr.CodeDaemonNotFound {
		t.Fatalf("spec still present after unregister")
	}
	if _, err := r.GetState("web"); syserr.CodeOf(err) != syserr.CodeDaemonNotFound {
		t.Fatalf("state still present after unregister")
	}
}

func TestUnregisterMissingFails(t *testing.T) {
	r := openTestRegistry(t)
	err := r.Unregister("ghost")
	if syserr.CodeOf(err) != syserr.CodeDaemonNotFound {
		t.Fatalf("code = %v, want CodeDaemonNotFound", syserr.CodeOf(err))
	}
}

func TestUpdateStateUpsertsAndRoundTrips(t *testing.T) {
	r := openTestRegistry(t)
	spec := sampleSpec("web")
	if err := r.Register(spec); err != nil {
		t.Fatalf("register: %v", err)
	}

	inst := daemon.NewInstance("web")
	pid := 4242
	inst.PID = &pid
	inst.State = lifecycle.Running

	if err := r.UpdateState(inst); err != nil {
		t.Fatalf("update state: %v", err)
	}

	got, err := r.GetState("web")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got.State != lifecycle.Running || got.PID == nil || *got.PID != pid {
		t.Fatalf("round-tripped state mismatch: %+v", got)
	}

	inst.State = lifecycle.Stopped
	inst.PID = nil
	if err := r.UpdateState(inst); err != nil {
		t.Fatalf("update state (second): %v", err)
	}
	got, err = r.GetState("web")
	if err != nil {
		t.Fatalf("get state (second): %v", err)
	}
	if got.State != lifecycle.Stopped || got.PID != nil {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
}

func TestListSpecsAndStates(t *testing.T) {
	r := openTestRegistry(t)
	for _, name := range []string{"b", "a", "c"} {
		if err := r.Register(sampleSpec(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		if err := r.UpdateState(daemon.NewInstance(name)); err != nil {
			t.Fatalf("update state %s: %v", name, err)
		}
	}

	specs, err := r.ListSpecs()
	if err != nil {
		t.Fatalf("list specs: %v", err)
	}
	if len(specs) != 3 || specs[0].Name != "a" || specs[1].Name != "b" || specs[2].Name != "c" {
		t.Fatalf("list specs not ordered by name: %+v", specs)
	}

	states, err := r.ListStates()
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}
}
