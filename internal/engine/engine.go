// Package engine is the supervision core: it holds one managedInstance per
// registered daemon, dispatches IPC requests onto the right instance, runs
// crash recovery at startup, and wires scheduled daemons into the cron
// scheduler (spec.md §4.6, §4.8).
//
// Lock order, to prevent deadlock between the three structures a request
// may touch: Engine.mu (the instances map) is always acquired before a
// managedInstance's own mu, which is always acquired before any call into
// the registry. No code path acquires them in the reverse order.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/env"
	"github.com/cyber-boost/syspulse/internal/history"
	"github.com/cyber-boost/syspulse/internal/ipc"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
	"github.com/cyber-boost/syspulse/internal/logs"
	"github.com/cyber-boost/syspulse/internal/metrics"
	"github.com/cyber-boost/syspulse/internal/paths"
	"github.com/cyber-boost/syspulse/internal/procdriver"
	"github.com/cyber-boost/syspulse/internal/registry"
	"github.com/cyber-boost/syspulse/internal/scheduler"
	"github.com/cyber-boost/syspulse/internal/syserr"
)

// Engine is the in-memory fleet of managed daemons, backed by a Registry
// for durability and a Scheduler for cron-triggered starts.
type Engine struct {
	mu        sync.RWMutex
	instances map[string]*managedInstance

	reg         *registry.Registry
	sched       *scheduler.Scheduler
	driver      procdriver.Driver
	logsDir     string
	globalEnv   *env.Env
	historySink history.Sink
}

// New constructs an Engine over an already-open registry, rooting every
// daemon's logs under paths.LogsDir(). Call Restore to adopt any daemons
// the registry says were running before a restart.
func New(reg *registry.Registry) *Engine {
	dir, err := paths.LogsDir()
	if err != nil {
		dir = "."
	}
	return NewWithLogsDir(reg, dir)
}

// NewWithLogsDir is New with an explicit logs root, for tests that must not
// write under the real data directory.
func NewWithLogsDir(reg *registry.Registry, logsDir string) *Engine {
	return &Engine{
		instances: make(map[string]*managedInstance),
		reg:       reg,
		sched:     scheduler.New(),
		driver:    procdriver.New(),
		logsDir:   logsDir,
		globalEnv: env.New(),
	}
}

func (e *Engine) logDirFor(name string) string {
	return filepath.Join(e.logsDir, name)
}

// SetHistorySink installs the sink every daemon's start/stop events are
// exported to. It only affects instances materialized afterward; call it
// before loading any daemon bundles at startup.
func (e *Engine) SetHistorySink(sink history.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.historySink = sink
}

// SetGlobalEnv installs "KEY=VALUE" pairs that every daemon's environment is
// merged with, underneath its own per-daemon Env and above the inherited OS
// environment. It replaces whichever globals were previously set for each
// key named, mirroring the supervisor's own global-env injection.
func (e *Engine) SetGlobalEnv(pairs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.globalEnv
	for _, kv := range pairs {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			g = g.WithSet(kv[:i], kv[i+1:])
		}
	}
	e.globalEnv = g
}

// Add registers a brand-new spec and materializes its instance in Stopped,
// or in Scheduled with a cron entry installed when the spec carries a
// non-empty Schedule. Add itself never starts the daemon.
func (e *Engine) Add(spec daemon.Spec) (*daemon.Instance, error) {
	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.Schedule != "" {
		if err := scheduler.ValidateExpr(spec.Schedule); err != nil {
			return nil, fmt.Errorf("engine: daemon %q: %w", spec.Name, err)
		}
	}

	e.mu.Lock()
	if _, exists := e.instances[spec.Name]; exists {
		e.mu.Unlock()
		return nil, syserr.DaemonAlreadyExists(spec.Name)
	}
	e.mu.Unlock()

	if err := e.reg.Register(spec); err != nil {
		return nil, err
	}

	inst := daemon.NewInstance(spec.Name)
	if spec.Schedule != "" {
		inst.State = lifecycle.Scheduled
	}
	if err := e.reg.UpdateState(inst); err != nil {
		return nil, err
	}

	mi := e.materialize(spec, inst)

	if spec.Schedule != "" {
		if err := e.sched.Schedule(spec.Name, spec.Schedule, e.cronFire); err != nil {
			return nil, err
		}
	}

	return mi.snapshot(), nil
}

func (e *Engine) materialize(spec daemon.Spec, inst *daemon.Instance) *managedInstance {
	e.mu.RLock()
	globalEnv := e.globalEnv
	sink := e.historySink
	e.mu.RUnlock()

	mi := newManagedInstance(spec, inst, e.logDirFor(spec.Name), e.driver, globalEnv, sink, func(i *daemon.Instance) {
		if err := e.reg.UpdateState(i); err != nil {
			slog.Warn("engine: persist state failed", "daemon", i.SpecName, "error", err)
		}
		// Runs without mi.mu held: persistLocked's caller already holds it, and
		// reportRunningTotal snapshots every instance including this one, which
		// would self-deadlock on a non-reentrant mutex if called synchronously.
		go e.reportRunningTotal()
	})
	e.mu.Lock()
	e.instances[spec.Name] = mi
	e.mu.Unlock()
	return mi
}

// cronFire is the scheduler.Callback installed for every scheduled daemon.
// It is a plain method value holding a strong reference to e; the scheduler
// it is installed in is owned by e and stopped by Engine.Shutdown.
func (e *Engine) cronFire(name string) {
	if err := e.Start(name, false, 0); err != nil {
		slog.Warn("engine: scheduled start failed", "daemon", name, "error", err)
	}
}

func (e *Engine) reportRunningTotal() {
	running := 0
	for _, inst := range e.List() {
		if inst.State == lifecycle.Running {
			running++
		}
	}
	metrics.SetRunningTotal(running)
}

func (e *Engine) get(name string) (*managedInstance, error) {
	e.mu.RLock()
	mi, ok := e.instances[name]
	e.mu.RUnlock()
	if !ok {
		return nil, syserr.DaemonNotFound(name)
	}
	return mi, nil
}

// Start starts name, optionally blocking up to timeout for it to reach
// Running (wait=true); with wait=false it returns as soon as the command is
// accepted.
func (e *Engine) Start(name string, wait bool, timeout time.Duration) error {
	mi, err := e.get(name)
	if err != nil {
		return err
	}
	if err := mi.send(cmdStart, false, timeout); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return waitForState(mi, lifecycle.Running, timeout)
}

// Stop stops name, waiting up to timeout for graceful shutdown before the
// instance goroutine escalates to Kill.
func (e *Engine) Stop(name string, force bool, timeout time.Duration) error {
	mi, err := e.get(name)
	if err != nil {
		return err
	}
	return mi.send(cmdStop, force, timeout)
}

// Restart stops then starts name as a single instance-goroutine command.
func (e *Engine) Restart(name string, force, wait bool) error {
	mi, err := e.get(name)
	if err != nil {
		return err
	}
	if err := mi.send(cmdRestart, force, 0); err != nil {
		return err
	}
	if !wait {
		return nil
	}
	return waitForState(mi, lifecycle.Running, 30*time.Second)
}

// Status returns one instance's current snapshot.
func (e *Engine) Status(name string) (*daemon.Instance, error) {
	mi, err := e.get(name)
	if err != nil {
		return nil, err
	}
	return mi.snapshot(), nil
}

// List returns every instance's current snapshot.
func (e *Engine) List() []*daemon.Instance {
	e.mu.RLock()
	names := make([]*managedInstance, 0, len(e.instances))
	for _, mi := range e.instances {
		names = append(names, mi)
	}
	e.mu.RUnlock()

	out := make([]*daemon.Instance, 0, len(names))
	for _, mi := range names {
		out = append(out, mi.snapshot())
	}
	return out
}

// Logs returns the last n lines of name's stdout (or stderr) log.
func (e *Engine) Logs(name string, n int, stderr bool) ([]string, error) {
	inst, err := e.Status(name)
	if err != nil {
		return nil, err
	}
	path := inst.StdoutLog
	if stderr {
		path = inst.StderrLog
	}
	if path == "" {
		return nil, nil
	}
	return logs.Tail(path, n)
}

// Remove stops (if force) and deletes name, failing if it is still active
// and force is false.
func (e *Engine) Remove(name string, force bool) error {
	mi, err := e.get(name)
	if err != nil {
		return err
	}

	snap := mi.snapshot()
	if snap.State.IsActive() {
		if !force {
			return fmt.Errorf("engine: daemon %q is %s; remove with force to stop it first", name, snap.State)
		}
		if err := mi.send(cmdStop, true, 0); err != nil {
			return err
		}
	}

	e.sched.Unschedule(name)
	_ = mi.send(cmdShutdown, false, 0)

	e.mu.Lock()
	delete(e.instances, name)
	e.mu.Unlock()

	return e.reg.Unregister(name)
}

// Shutdown stops every active instance and tears down the scheduler. It
// does not unregister anything: specs and last-known state remain for the
// next startup's crash recovery.
func (e *Engine) Shutdown(timeout time.Duration) {
	e.sched.Shutdown()

	e.mu.RLock()
	all := make([]*managedInstance, 0, len(e.instances))
	for _, mi := range e.instances {
		all = append(all, mi)
	}
	e.mu.RUnlock()

	for _, mi := range all {
		if mi.snapshot().State.IsActive() {
			_ = mi.send(cmdStop, true, timeout)
		}
		_ = mi.send(cmdShutdown, false, 0)
	}

	e.mu.RLock()
	sink := e.historySink
	e.mu.RUnlock()
	if sink != nil {
		if err := sink.Close(); err != nil {
			slog.Warn("engine: history sink close failed", "error", err)
		}
	}
}

func waitForState(mi *managedInstance, target lifecycle.State, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := mi.snapshot()
		if snap.State == target {
			return nil
		}
		if snap.State == lifecycle.Failed {
			return fmt.Errorf("engine: daemon %q failed to reach %s", snap.SpecName, target)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("engine: timed out waiting for daemon to reach %s", target)
}

// Handle dispatches a single IPC request, matching the original manager's
// handle_request switch one variant at a time (spec.md §4.8, §6).
func (e *Engine) Handle(req ipc.Request) ipc.Response {
	switch req.Type {
	case ipc.ReqPing:
		return ipc.Response{Type: ipc.RespPong}

	case ipc.ReqStart:
		timeout := durationFromSecs(req.TimeoutSecs)
		if err := e.Start(req.Name, req.Wait, timeout); err != nil {
			return errorResponse(err)
		}
		return ipc.OkResponse(fmt.Sprintf("started %s", req.Name))

	case ipc.ReqStop:
		timeout := durationFromSecs(req.TimeoutSecs)
		if err := e.Stop(req.Name, req.Force, timeout); err != nil {
			return errorResponse(err)
		}
		return ipc.OkResponse(fmt.Sprintf("stopped %s", req.Name))

	case ipc.ReqRestart:
		if err := e.Restart(req.Name, req.Force, req.Wait); err != nil {
			return errorResponse(err)
		}
		return ipc.OkResponse(fmt.Sprintf("restarted %s", req.Name))

	case ipc.ReqStatus:
		if req.Name == "" {
			return ipc.Response{Type: ipc.RespList, Instances: e.List()}
		}
		inst, err := e.Status(req.Name)
		if err != nil {
			return errorResponse(err)
		}
		return ipc.Response{Type: ipc.RespStatus, Instance: inst}

	case ipc.ReqList:
		return ipc.Response{Type: ipc.RespList, Instances: e.List()}

	case ipc.ReqLogs:
		lines, err := e.Logs(req.Name, req.Lines, req.Stderr)
		if err != nil {
			return errorResponse(err)
		}
		return ipc.Response{Type: ipc.RespLogs, Lines: lines}

	case ipc.ReqAdd:
		if req.Spec == nil {
			return errorResponse(fmt.Errorf("engine: add request missing spec"))
		}
		inst, err := e.Add(*req.Spec)
		if err != nil {
			return errorResponse(err)
		}
		return ipc.Response{Type: ipc.RespStatus, Instance: inst}

	case ipc.ReqRemove:
		if err := e.Remove(req.Name, req.Force); err != nil {
			return errorResponse(err)
		}
		return ipc.OkResponse(fmt.Sprintf("removed %s", req.Name))

	case ipc.ReqShutdown:
		e.Shutdown(30 * time.Second)
		return ipc.OkResponse("shutting down")

	default:
		return ipc.ErrorResponse(400, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

func durationFromSecs(secs *uint64) time.Duration {
	if secs == nil {
		return 0
	}
	return time.Duration(*secs) * time.Second
}

func errorResponse(err error) ipc.Response {
	return ipc.ErrorResponse(syserr.CodeOf(err).IPCStatus(), err.Error())
}
