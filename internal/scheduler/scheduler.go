// Package scheduler runs cron-scheduled daemons: specs carrying a non-empty
// Schedule are started by a shared cron engine each time their expression
// fires; registration itself starts nothing (spec.md §4.7).
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateExpr rejects a cron expression the scheduler could not parse,
// without scheduling anything. Callers use this at spec validation time so
// a bad expression is rejected at Add rather than silently never firing.
func ValidateExpr(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// Callback is invoked on a cron engine goroutine each time a daemon's
// schedule fires. Implementations must not block for long: the spec's
// intended use is "start this daemon now", not inline work.
type Callback func(daemonName string)

// Scheduler is a single shared cron engine multiplexing every scheduled
// daemon's expression, mirroring original_source/scheduler.rs's one
// JobScheduler instance rather than one timer per daemon.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

// New constructs a Scheduler. It must be started with Start before any
// schedule fires.
func New() *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start launches the cron engine's background goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Schedule installs or replaces the cron entry for name. fn is invoked with
// name as its argument, so a single Callback value can serve every daemon.
func (s *Scheduler) Schedule(name, expr string, fn Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
		delete(s.entries, name)
	}

	id, err := s.cron.AddFunc(expr, func() {
		slog.Info("scheduled daemon firing", "name", name)
		fn(name)
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q for %q: %w", expr, name, err)
	}
	s.entries[name] = id
	return nil
}

// Unschedule removes name's cron entry, if any. It is a no-op if name was
// never scheduled.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Shutdown stops the cron engine, waiting for any in-flight callback to
// return.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
}
