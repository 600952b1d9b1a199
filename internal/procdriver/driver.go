// Package procdriver is the five-method platform abstraction the engine,
// monitor loop, and scheduler drive children through: Spawn, Stop, Kill,
// IsAlive, Wait. The platform split is a compile-time selection between two
// implementations of this same contract (procdriver_unix.go /
// procdriver_windows.go); no runtime platform conditional leaks above this
// package.
package procdriver

import (
	"fmt"
	"io"
	"os/exec"
	"time"
)

// SpawnSpec is everything the driver needs to exec a child, stripped of the
// policy fields (restart policy, health check, schedule) that belong to
// daemon.Spec but are of no concern to the OS-level spawn path.
type SpawnSpec struct {
	Command        []string
	WorkingDir     string
	Env            []string // already merged, "K=V" form
	Stdout         io.Writer
	Stderr         io.Writer
	MaxMemoryBytes *uint64
	MaxOpenFiles   *uint64
}

// Info is what Spawn hands back: just enough to track and later address the
// child. The driver deliberately does not retain a reaping handle beyond
// what Wait needs, so that an operator restart of the manager does not
// orphan or double-kill the daemon (spec §5, §9 "child-lifetime decoupling").
type Info struct {
	PID int
}

// Driver is the platform-specific adapter to the operating system's process
// primitives.
type Driver interface {
	// Spawn starts spec detached from the manager's own session/console
	// group, with stdin closed and stdout/stderr wired to the given
	// writers. On Unix, resource limits, if set, are applied before the
	// child begins executing the target program; on Windows the memory
	// limit is attached through a Job Object right after the process starts.
	Spawn(spec SpawnSpec) (Info, error)
	// Stop requests graceful termination of the process group rooted at
	// pid, polling liveness every 100ms up to timeout, and escalates to
	// Kill itself if the process is still alive then. Missing-process
	// errors are treated as success.
	Stop(pid int, timeout time.Duration) error
	// Kill unconditionally and immediately terminates the process group
	// rooted at pid. Missing-process errors are treated as success.
	Kill(pid int) error
	// IsAlive reports whether pid still denotes a live, non-zombie
	// process.
	IsAlive(pid int) bool
	// Wait performs a non-blocking reap. It returns a non-nil exit code
	// if the child has exited (signal-terminated processes report
	// -signal), or nil if it is still alive.
	Wait(pid int) *int
}

// New returns the Driver implementation selected for the current platform.
func New() Driver { return &driver{} }

func buildCommand(spec SpawnSpec) (*exec.Cmd, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("procdriver: spawn spec has empty command")
	}
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	cmd.Stdin = nil
	configureDetached(cmd)
	return cmd, nil
}
