//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// Listen binds the named pipe at path (conventionally
// \\.\pipe\syspulse). Windows has no stale-file analogue to clean up: the
// pipe namespace is reclaimed by the kernel when the owning process exits.
func Listen(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen on pipe %s: %w", path, err)
	}
	return ln, nil
}

// Dial connects to the named pipe at path.
func Dial(path string) (net.Conn, error) {
	conn, err := winio.DialPipeContext(context.Background(), path)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial pipe %s: %w", path, err)
	}
	return conn, nil
}
