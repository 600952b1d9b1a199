package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/env"
	"github.com/cyber-boost/syspulse/internal/health"
	"github.com/cyber-boost/syspulse/internal/history"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
	"github.com/cyber-boost/syspulse/internal/logs"
	"github.com/cyber-boost/syspulse/internal/metrics"
	"github.com/cyber-boost/syspulse/internal/procdriver"
	"github.com/cyber-boost/syspulse/internal/restart"
)

var allStates = []string{
	string(lifecycle.Stopped), string(lifecycle.Starting), string(lifecycle.Running),
	string(lifecycle.Stopping), string(lifecycle.Failed), string(lifecycle.Scheduled),
}

// cmdKind selects the action a command sent to an instance's goroutine
// performs, mirroring the single-goroutine command-channel pattern the
// supervisor's legacy ManagedProcess type used for its own 4-state machine,
// generalized here to daemon.Instance's 6 states.
type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdStop
	cmdRestart
	cmdShutdown
)

type instanceCmd struct {
	kind    cmdKind
	force   bool
	timeout time.Duration
	reply   chan error
}

// managedInstance owns exactly one daemon.Spec's runtime lifecycle: its own
// goroutine serializes every state transition, so the only cross-goroutine
// surface is cmdChan (commands in) and the mutex-guarded inst snapshot
// (reads out).
type managedInstance struct {
	mu   sync.Mutex
	spec daemon.Spec
	inst *daemon.Instance

	cmdChan  chan instanceCmd
	doneChan chan struct{}

	driver      procdriver.Driver
	logDir      string
	globalEnv   *env.Env
	persist     func(*daemon.Instance)
	historySink history.Sink

	healthCancel context.CancelFunc
}

func newManagedInstance(spec daemon.Spec, inst *daemon.Instance, logDir string, driver procdriver.Driver, globalEnv *env.Env, historySink history.Sink, persist func(*daemon.Instance)) *managedInstance {
	mi := &managedInstance{
		spec:        spec,
		inst:        inst,
		cmdChan:     make(chan instanceCmd, 8),
		doneChan:    make(chan struct{}),
		driver:      driver,
		logDir:      logDir,
		globalEnv:   globalEnv,
		historySink: historySink,
		persist:     persist,
	}
	go mi.run()
	return mi
}

// snapshot returns a safe copy of the instance's current state.
func (mi *managedInstance) snapshot() *daemon.Instance {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.inst.Clone()
}

func (mi *managedInstance) send(kind cmdKind, force bool, timeout time.Duration) error {
	reply := make(chan error, 1)
	select {
	case mi.cmdChan <- instanceCmd{kind: kind, force: force, timeout: timeout, reply: reply}:
	case <-mi.doneChan:
		return fmt.Errorf("engine: daemon %q is shutting down", mi.specName())
	}
	select {
	case err := <-reply:
		return err
	case <-mi.doneChan:
		return nil
	}
}

func (mi *managedInstance) specName() string {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.spec.Name
}

func (mi *managedInstance) run() {
	defer close(mi.doneChan)

	monitor := time.NewTicker(time.Second)
	defer monitor.Stop()

	for {
		select {
		case cmd := <-mi.cmdChan:
			mi.handle(cmd)
			if cmd.kind == cmdShutdown {
				return
			}
		case <-monitor.C:
			mi.checkExit()
		}
	}
}

func (mi *managedInstance) handle(cmd instanceCmd) {
	var err error
	switch cmd.kind {
	case cmdStart:
		err = mi.doStart()
	case cmdStop:
		err = mi.doStop(cmd.timeout)
	case cmdRestart:
		if stopErr := mi.doStop(cmd.timeout); stopErr != nil && !cmd.force {
			err = stopErr
			break
		}
		err = mi.doStart()
	case cmdShutdown:
		_ = mi.doStop(cmd.timeout)
	}
	cmd.reply <- err
}

func (mi *managedInstance) doStart() error {
	mi.mu.Lock()
	spec := mi.spec
	state := mi.inst.State
	mi.mu.Unlock()

	if !state.CanTransitionTo(lifecycle.Starting) {
		return fmt.Errorf("engine: daemon %q cannot start from state %s", spec.Name, state)
	}

	if err := os.MkdirAll(mi.logDir, 0o755); err != nil {
		return fmt.Errorf("engine: create log dir for %q: %w", spec.Name, err)
	}
	stdout, stderr := logs.Writers(mi.logDir, spec.LogConfig)
	stdoutPath, stderrPath := logs.Paths(mi.logDir)

	spawnSpec := procdriver.SpawnSpec{
		Command:    spec.Command,
		WorkingDir: spec.WorkingDir,
		Env:        mi.globalEnv.Merge(envPairs(spec.Env)),
		Stdout:     stdout,
		Stderr:     stderr,
	}
	if spec.ResourceLimits != nil {
		spawnSpec.MaxMemoryBytes = spec.ResourceLimits.MaxMemoryBytes
		spawnSpec.MaxOpenFiles = spec.ResourceLimits.MaxOpenFiles
	}

	mi.setState(lifecycle.Starting)

	info, err := mi.driver.Spawn(spawnSpec)
	if err != nil {
		mi.setState(lifecycle.Failed)
		return fmt.Errorf("engine: spawn %q: %w", spec.Name, err)
	}

	now := time.Now().UTC()
	mi.mu.Lock()
	mi.inst.PID = &info.PID
	mi.inst.StartedAt = &now
	mi.inst.StoppedAt = nil
	mi.inst.ExitCode = nil
	mi.inst.StdoutLog = stdoutPath
	mi.inst.StderrLog = stderrPath
	mi.inst.HealthStatus = daemon.HealthNotConfigured
	if spec.HealthCheck != nil {
		mi.inst.HealthStatus = daemon.HealthUnknown
	}
	mi.mu.Unlock()

	mi.setState(lifecycle.Running)
	mi.startHealthLoop(spec)
	return nil
}

func (mi *managedInstance) startHealthLoop(spec daemon.Spec) {
	if spec.HealthCheck == nil {
		return
	}
	checker, err := health.New(*spec.HealthCheck)
	if err != nil {
		slog.Warn("engine: health checker construction failed", "daemon", spec.Name, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mi.mu.Lock()
	mi.healthCancel = cancel
	mi.mu.Unlock()

	interval := time.Duration(spec.HealthCheck.IntervalSecs) * time.Second
	startPeriod := time.Duration(spec.HealthCheck.StartPeriodSecs) * time.Second

	go health.Loop(ctx, checker, startPeriod, interval, spec.HealthCheck.Retries, func(status health.Status) {
		mi.mu.Lock()
		defer mi.mu.Unlock()
		if mi.inst.State != lifecycle.Running {
			return
		}
		if status == health.Healthy {
			mi.inst.HealthStatus = daemon.HealthHealthy
		} else {
			mi.inst.HealthStatus = daemon.HealthUnhealthy
		}
		mi.persistLocked()
	})
}

func (mi *managedInstance) stopHealthLoop() {
	mi.mu.Lock()
	cancel := mi.healthCancel
	mi.healthCancel = nil
	mi.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (mi *managedInstance) doStop(timeout time.Duration) error {
	mi.mu.Lock()
	state := mi.inst.State
	pid := mi.inst.PID
	spec := mi.spec
	mi.mu.Unlock()

	if !state.IsActive() || pid == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = time.Duration(spec.StopTimeoutSecs) * time.Second
	}

	if !state.CanTransitionTo(lifecycle.Stopping) {
		return fmt.Errorf("engine: daemon %q cannot stop from state %s", spec.Name, state)
	}
	mi.setState(lifecycle.Stopping)
	mi.stopHealthLoop()

	err := mi.driver.Stop(*pid, timeout)
	code := mi.driver.Wait(*pid)

	now := time.Now().UTC()
	mi.mu.Lock()
	mi.inst.StoppedAt = &now
	mi.inst.ExitCode = code
	mi.inst.PID = nil
	mi.inst.HealthStatus = daemon.HealthNotConfigured
	if spec.HealthCheck != nil {
		mi.inst.HealthStatus = daemon.HealthUnknown
	}
	mi.mu.Unlock()

	mi.setState(lifecycle.Stopped)
	return err
}

// checkExit is the per-instance monitor tick: a non-blocking reap, and if
// the child has exited, the restart-evaluator consultation that decides
// whether to schedule a restart or settle into Stopped.
func (mi *managedInstance) checkExit() {
	mi.mu.Lock()
	state := mi.inst.State
	pid := mi.inst.PID
	mi.mu.Unlock()

	if state != lifecycle.Running || pid == nil {
		return
	}

	code := mi.driver.Wait(*pid)
	if code == nil {
		mi.mu.Lock()
		name := mi.spec.Name
		mi.mu.Unlock()
		metrics.SampleResourceUsage(name, int32(*pid))
		return
	}

	mi.stopHealthLoop()
	now := time.Now().UTC()
	mi.mu.Lock()
	mi.inst.ExitCode = code
	mi.inst.StoppedAt = &now
	mi.inst.PID = nil
	mi.inst.HealthStatus = daemon.HealthNotConfigured
	if mi.spec.HealthCheck != nil {
		mi.inst.HealthStatus = daemon.HealthUnknown
	}
	restartCount := mi.inst.RestartCount
	policy := mi.spec.RestartPolicy
	name := mi.spec.Name
	mi.mu.Unlock()

	mi.setState(lifecycle.Failed)

	if !restart.ShouldRestart(policy, code, restartCount) {
		mi.setState(lifecycle.Stopped)
		return
	}

	delay := restart.BackoffDuration(policy, restartCount)
	slog.Info("engine: scheduling restart", "daemon", name, "delay", delay, "restart_count", restartCount+1)

	mi.mu.Lock()
	mi.inst.RestartCount++
	mi.mu.Unlock()
	mi.persist0()
	metrics.IncRestart(name)

	time.AfterFunc(delay, func() {
		if err := mi.send(cmdStart, false, 0); err != nil {
			slog.Warn("engine: scheduled restart failed", "daemon", name, "error", err)
		}
	})
}

func (mi *managedInstance) setState(s lifecycle.State) {
	mi.mu.Lock()
	from := mi.inst.State
	mi.inst.State = s
	name := mi.spec.Name
	mi.mu.Unlock()

	metrics.RecordStateTransition(name, string(from), string(s))
	metrics.SetCurrentState(name, allStates, string(s))
	switch s {
	case lifecycle.Running:
		metrics.IncStart(name)
		mi.recordHistory(history.EventStart)
	case lifecycle.Stopped, lifecycle.Failed:
		if s == lifecycle.Stopped {
			metrics.IncStop(name)
			metrics.DeleteDaemon(name)
		}
		mi.recordHistory(history.EventStop)
	}
	mi.persist0()
}

// recordHistory fires off a history event without blocking the instance
// goroutine on a slow sink (network round trip to ClickHouse/OpenSearch/a
// database). A nil sink is the common case and is a no-op.
func (mi *managedInstance) recordHistory(evt history.EventType) {
	if mi.historySink == nil {
		return
	}
	mi.mu.Lock()
	spec := mi.spec
	snap := mi.inst.Clone()
	mi.mu.Unlock()

	rec := history.FromInstance(snap, spec)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mi.historySink.Send(ctx, history.Event{Type: evt, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
			slog.Warn("engine: history sink send failed", "daemon", spec.Name, "error", err)
		}
	}()
}

func (mi *managedInstance) persist0() {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.persistLocked()
}

// persistLocked writes the instance through to the registry. Callers must
// already hold mi.mu.
func (mi *managedInstance) persistLocked() {
	if mi.persist != nil {
		mi.persist(mi.inst.Clone())
	}
}

func envPairs(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
