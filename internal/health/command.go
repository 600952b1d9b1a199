package health

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// CommandChecker runs Command, through the platform shell when it contains
// shell metacharacters and directly otherwise (see buildShellAwareCommand),
// discarding stdout/stderr. Zero exit is Healthy, non-zero is Unhealthy, and a run
// that exceeds Timeout is reported as Timeout.
type CommandChecker struct {
	Command string
	Timeout time.Duration
}

func (c *CommandChecker) Describe() string { return "command " + c.Command }

func (c *CommandChecker) Check(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := buildShellAwareCommand(ctx, c.Command)
	err := cmd.Run()
	if err == nil {
		return Healthy, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Unhealthy, nil
	}
	return Unhealthy, err
}

// buildShellAwareCommand avoids invoking a shell unless obvious shell
// metacharacters are present in target, mirroring the command-detection
// idiom used elsewhere for process liveness probes.
func buildShellAwareCommand(ctx context.Context, target string) *exec.Cmd {
	target = strings.TrimSpace(target)
	if strings.ContainsAny(target, "|&;<>*?`$\"'(){}[]~") {
		return shellCommand(ctx, target)
	}
	parts := strings.Fields(target)
	if len(parts) == 0 {
		return shellCommand(ctx, target)
	}
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}
