//go:build !windows

package procdriver

import (
	"fmt"
	"os/exec"
	"strings"
)

// applyResourceLimits rewrites cmd to go through a shell that sets ulimits
// before exec'ing the real program, when the spec asks for a memory or
// open-file cap. Go's os/exec offers no pre-exec hook into the forked
// child, so a shell wrapper is the idiomatic way to apply POSIX rlimits
// ahead of the target program's own exec (spec.md §4.2: "apply before exec
// on Unix"). CPU percent has no rlimit equivalent and is left unenforced,
// matching spec.md's framing of resource_limits as best-effort.
func applyResourceLimits(cmd *exec.Cmd, spec SpawnSpec) error {
	if spec.MaxMemoryBytes == nil && spec.MaxOpenFiles == nil {
		return nil
	}

	var ulimits []string
	if spec.MaxMemoryBytes != nil {
		kb := *spec.MaxMemoryBytes / 1024
		ulimits = append(ulimits, fmt.Sprintf("ulimit -v %d", kb))
	}
	if spec.MaxOpenFiles != nil {
		ulimits = append(ulimits, fmt.Sprintf("ulimit -n %d", *spec.MaxOpenFiles))
	}

	script := strings.Join(ulimits, "; ") + "; exec \"$@\""
	args := append([]string{"sh", "-c", script, cmd.Path}, cmd.Args[1:]...)

	shPath, err := exec.LookPath("sh")
	if err != nil {
		shPath = "/bin/sh"
	}
	cmd.Path = shPath
	cmd.Args = args
	return nil
}
