package health

import (
	"context"
	"time"
)

// ObserveFunc is called with the latest probe outcome. Implementations
// should set the instance's health_status only if the instance is still
// Running, per spec.md §4.4; the loop itself does not know about lifecycle
// state.
type ObserveFunc func(status Status)

// Loop runs checker on interval (after an initial startPeriod grace
// window), tracking consecutive failures. Every Healthy result resets the
// count and is reported to observe; a failure (Unhealthy or Timeout) is
// reported as Unhealthy only once the count has reached retries. It
// returns when ctx is canceled — by the engine on stop,
// remove, or the instance leaving Running.
func Loop(ctx context.Context, checker Checker, startPeriod, interval time.Duration, retries uint32, observe ObserveFunc) {
	if startPeriod > 0 {
		select {
		case <-time.After(startPeriod):
		case <-ctx.Done():
			return
		}
	}

	var consecutiveFailures uint32
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, _ := checker.Check(ctx)
			switch status {
			case Healthy:
				consecutiveFailures = 0
				observe(Healthy)
			default: // Unhealthy or Timeout, both treated as failure per spec.md §4.4
				consecutiveFailures++
				if consecutiveFailures >= retries {
					observe(Unhealthy)
				}
			}
		}
	}
}
