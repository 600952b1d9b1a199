// Package client is the Go API other programs use to talk to syspulsed: a
// thin, typed wrapper over internal/ipc's Request/Response protocol, in the
// spirit of the supervisor's original HTTP API client but speaking the
// local control socket instead.
package client

import (
	"fmt"
	"time"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/ipc"
	"github.com/cyber-boost/syspulse/internal/paths"
)

// Client talks to a running syspulsed over its control socket.
type Client struct {
	ipc *ipc.Client
}

// Connect dials the default control socket path (paths.SocketPath).
func Connect() (*Client, error) {
	path, err := paths.SocketPath()
	if err != nil {
		return nil, err
	}
	return ConnectTo(path)
}

// ConnectTo dials a control socket at an explicit path, for tests and for
// operators running more than one syspulsed instance side by side.
func ConnectTo(path string) (*Client, error) {
	c, err := ipc.Connect(path)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{ipc: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.ipc.Close() }

// APIError wraps an error Response's code and message.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("syspulsed: %s (code %d)", e.Message, e.Code) }

func asError(resp ipc.Response) error {
	if resp.Type == ipc.RespError {
		return &APIError{Code: resp.Code, Message: resp.Message}
	}
	return nil
}

// Start asks syspulsed to start name, optionally blocking until it reaches
// the Running state.
func (c *Client) Start(name string, wait bool, timeout time.Duration) error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqStart, Name: name, Wait: wait, TimeoutSecs: secsPtr(timeout)})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Stop asks syspulsed to stop name.
func (c *Client) Stop(name string, force bool, timeout time.Duration) error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqStop, Name: name, Force: force, TimeoutSecs: secsPtr(timeout)})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Restart asks syspulsed to stop then start name.
func (c *Client) Restart(name string, force, wait bool) error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqRestart, Name: name, Force: force, Wait: wait})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Status returns a single daemon's current instance snapshot. For an empty
// name the engine answers with a list, which Status does not return: it
// yields a nil instance; List returns every daemon.
func (c *Client) Status(name string) (*daemon.Instance, error) {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqStatus, Name: name})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	return resp.Instance, nil
}

// List returns every registered daemon's current instance snapshot.
func (c *Client) List() ([]*daemon.Instance, error) {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqList})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// Logs returns up to n lines of name's stdout (or stderr, if stderr=true).
func (c *Client) Logs(name string, n int, stderr bool) ([]string, error) {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqLogs, Name: name, Lines: n, Stderr: stderr})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	return resp.Lines, nil
}

// Add registers a new daemon spec.
func (c *Client) Add(spec daemon.Spec) (*daemon.Instance, error) {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqAdd, Spec: &spec})
	if err != nil {
		return nil, err
	}
	if err := asError(resp); err != nil {
		return nil, err
	}
	return resp.Instance, nil
}

// Remove unregisters a daemon, stopping it first if force is set.
func (c *Client) Remove(name string, force bool) error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqRemove, Name: name, Force: force})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Shutdown asks syspulsed to stop every daemon and exit.
func (c *Client) Shutdown() error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqShutdown})
	if err != nil {
		return err
	}
	return asError(resp)
}

// Ping checks that syspulsed is reachable and responsive.
func (c *Client) Ping() error {
	resp, err := c.ipc.Call(ipc.Request{Type: ipc.ReqPing})
	if err != nil {
		return err
	}
	if resp.Type != ipc.RespPong {
		return asError(resp)
	}
	return nil
}

func secsPtr(d time.Duration) *uint64 {
	if d <= 0 {
		return nil
	}
	secs := uint64(d / time.Second)
	return &secs
}
