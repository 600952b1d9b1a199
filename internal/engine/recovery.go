package engine

import (
	"log/slog"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
)

// Restore loads every registered spec and its last-known state, materializes
// a managedInstance for each, and respawns any daemon the registry says was
// Running or Starting when syspulsed last stopped — "adoption by respawn"
// rather than re-attaching to the old pid, since a bare restart gives no
// guarantee the old pid still belongs to that daemon (spec.md §6 startup
// recovery).
func (e *Engine) Restore() error {
	specs, err := e.reg.ListSpecs()
	if err != nil {
		return err
	}

	for _, spec := range specs {
		state, err := e.reg.GetState(spec.Name)
		if err != nil {
			state = daemon.NewInstance(spec.Name)
		}

		wasRunning := state.State == lifecycle.Running || state.State == lifecycle.Starting
		wasScheduled := state.State == lifecycle.Scheduled

		// Reset to a resting state before respawning through the normal
		// Start command path, never re-adopting the stale pid directly.
		state.PID = nil
		switch {
		case wasScheduled:
			state.State = lifecycle.Scheduled
		default:
			state.State = lifecycle.Stopped
		}

		mi := e.materialize(spec, state)

		if spec.Schedule != "" {
			if err := e.sched.Schedule(spec.Name, spec.Schedule, e.cronFire); err != nil {
				slog.Warn("engine: restore: failed to install schedule", "daemon", spec.Name, "error", err)
			}
		}

		if wasRunning {
			slog.Info("engine: restoring previously running daemon", "daemon", spec.Name)
			if err := mi.send(cmdStart, false, 0); err != nil {
				slog.Warn("engine: restore: respawn failed", "daemon", spec.Name, "error", err)
			}
		}
	}

	e.sched.Start()
	return nil
}
