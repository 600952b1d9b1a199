// Package lifecycle implements the daemon instance state machine: the six
// states an instance can occupy and the transitions permitted between them.
package lifecycle

import "github.com/cyber-boost/syspulse/internal/syserr"

// State is one of the six phases a daemon instance can occupy.
type State string

const (
	Stopped   State = "stopped"
	Starting  State = "starting"
	Running   State = "running"
	Stopping  State = "stopping"
	Failed    State = "failed"
	Scheduled State = "scheduled"
)

func (s State) String() string { return string(s) }

var transitions = map[State]map[State]bool{
	Stopped:   {Starting: true, Scheduled: true},
	Starting:  {Running: true, Failed: true, Stopping: true},
	Running:   {Stopping: true, Failed: true},
	Stopping:  {Stopped: true, Failed: true},
	Failed:    {Starting: true, Stopped: true},
	Scheduled: {Starting: true, Stopped: true},
}

// CanTransitionTo reports whether s -> target is a permitted transition.
// Self-transitions are always rejected, including states not otherwise
// present in the table.
func (s State) CanTransitionTo(target State) bool {
	return transitions[s][target]
}

// TransitionTo returns target if the transition is permitted, otherwise an
// InvalidTransition error carrying both endpoints.
func (s State) TransitionTo(target State) (State, error) {
	if !s.CanTransitionTo(target) {
		return s, syserr.InvalidTransition(string(s), string(target))
	}
	return target, nil
}

// IsActive reports whether an instance in this state holds a live pid.
func (s State) IsActive() bool {
	switch s {
	case Starting, Running, Stopping:
		return true
	default:
		return false
	}
}
