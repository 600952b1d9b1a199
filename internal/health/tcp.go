package health

import (
	"context"
	"errors"
	"net"
	"time"
)

// TCPChecker probes host:port with a plain dial. Success is Healthy,
// connection refusal or unreachable host is Unhealthy, and a dial that
// exceeds Timeout is reported as Timeout.
type TCPChecker struct {
	Address string
	Timeout time.Duration
}

func (c *TCPChecker) Describe() string { return "tcp " + c.Address }

func (c *TCPChecker) Check(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Timeout, ctx.Err()
		}
		return Unhealthy, nil
	}
	_ = conn.Close()
	return Healthy, nil
}
