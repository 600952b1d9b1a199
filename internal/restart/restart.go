// Package restart implements the pure restart decision and backoff math
// consulted by the monitor loop after an instance exits.
package restart

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Kind selects the restart policy variant.
type Kind string

const (
	Never      Kind = "never"
	Always     Kind = "always"
	OnFailure  Kind = "on_failure"
)

// Policy is the tagged union spec.md §3 describes as
// `{Never | Always{max_retries?, base, max} | OnFailure{max_retries?, base, max}}`.
// MaxRetries nil means unbounded.
type Policy struct {
	Kind        Kind    `json:"policy" mapstructure:"policy"`
	MaxRetries  *uint32 `json:"max_retries,omitempty" mapstructure:"max_retries"`
	BackoffBase float64 `json:"backoff_base_secs" mapstructure:"backoff_base_secs"`
	BackoffMax  float64 `json:"backoff_max_secs" mapstructure:"backoff_max_secs"`
}

// ApplyDefaults mirrors original_source/restart.rs's serde defaults: base
// 1.0s, max 300.0s, and Never as the zero-value kind.
func (p *Policy) ApplyDefaults() {
	if p.Kind == "" {
		p.Kind = Never
	}
	if p.BackoffBase == 0 {
		p.BackoffBase = 1.0
	}
	if p.BackoffMax == 0 {
		p.BackoffMax = 300.0
	}
}

// Validate rejects a policy with an unrecognized Kind.
func (p *Policy) Validate() error {
	switch p.Kind {
	case Never, Always, OnFailure:
		return nil
	default:
		return fmt.Errorf("restart policy: unknown kind %q", p.Kind)
	}
}

// ShouldRestart decides whether the monitor loop should restart a daemon
// that just exited with exitCode (nil if signal-terminated or unreapable)
// having already been restarted restartCount times this spec's lifetime.
func ShouldRestart(p Policy, exitCode *int, restartCount uint32) bool {
	switch p.Kind {
	case Never:
		return false
	case Always:
		return p.MaxRetries == nil || restartCount < *p.MaxRetries
	case OnFailure:
		failed := exitCode == nil || *exitCode != 0
		return failed && (p.MaxRetries == nil || restartCount < *p.MaxRetries)
	default:
		return false
	}
}

// BackoffDuration computes the delay before the nth restart (n =
// restartCount, zero-based): min(base*2^n, max) inflated by up to 10%
// jitter drawn from a uniform distribution.
func BackoffDuration(p Policy, restartCount uint32) time.Duration {
	if p.Kind == Never {
		return 0
	}
	capped := computeBackoffSeconds(restartCount, p.BackoffBase, p.BackoffMax)
	return time.Duration(capped * float64(time.Second))
}

func computeBackoffSeconds(attempt uint32, base, max float64) float64 {
	exp := base * math.Pow(2, float64(attempt))
	capped := math.Min(exp, max)
	jitter := rand.Float64() * capped * 0.1
	return capped + jitter
}
