// Package daemon holds the declarative and runtime data model the engine
// operates on: DaemonSpec (author-owned declaration) and DaemonInstance
// (engine-owned runtime mirror).
package daemon

import (
	"fmt"
	"strings"

	"github.com/cyber-boost/syspulse/internal/restart"
)

// HealthCheckType selects which health.Checker variant a spec wants.
type HealthCheckType string

const (
	HealthHTTP    HealthCheckType = "http"
	HealthTCP     HealthCheckType = "tcp"
	HealthCommand HealthCheckType = "command"
)

// HealthCheckSpec describes how to probe a running instance.
type HealthCheckSpec struct {
	Type            HealthCheckType `json:"type" mapstructure:"type"`
	Target          string          `json:"target" mapstructure:"target"`
	IntervalSecs    uint64          `json:"interval_secs" mapstructure:"interval_secs"`
	TimeoutSecs     uint64          `json:"timeout_secs" mapstructure:"timeout_secs"`
	Retries         uint32          `json:"retries" mapstructure:"retries"`
	StartPeriodSecs uint64          `json:"start_period_secs" mapstructure:"start_period_secs"`
}

func (h *HealthCheckSpec) applyDefaults() {
	if h.IntervalSecs == 0 {
		h.IntervalSecs = 30
	}
	if h.TimeoutSecs == 0 {
		h.TimeoutSecs = 5
	}
	if h.Retries == 0 {
		h.Retries = 3
	}
}

// ResourceLimits caps what a spawned child may consume. Nil fields are
// unenforced.
type ResourceLimits struct {
	MaxMemoryBytes *uint64  `json:"max_memory_bytes,omitempty" mapstructure:"max_memory_bytes"`
	MaxCPUPercent  *float64 `json:"max_cpu_percent,omitempty" mapstructure:"max_cpu_percent"`
	MaxOpenFiles   *uint64  `json:"max_open_files,omitempty" mapstructure:"max_open_files"`
}

// LogConfig controls rotation of a daemon's stdout/stderr files.
type LogConfig struct {
	MaxSizeBytes    uint64 `json:"max_size_bytes" mapstructure:"max_size_bytes"`
	RetainCount     uint32 `json:"retain_count" mapstructure:"retain_count"`
	CompressRotated bool   `json:"compress_rotated" mapstructure:"compress_rotated"`
}

func (l *LogConfig) applyDefaults() {
	if l.MaxSizeBytes == 0 {
		l.MaxSizeBytes = 50 * 1024 * 1024
	}
	if l.RetainCount == 0 {
		l.RetainCount = 5
	}
}

// Spec is the author-owned declaration of a daemon. It is the sole write
// surface of a managed process; the engine never mutates one in place
// (respeccing a running daemon means remove + re-add).
type Spec struct {
	Name            string            `json:"name" mapstructure:"name"`
	Command         []string          `json:"command" mapstructure:"command"`
	WorkingDir      string            `json:"working_dir,omitempty" mapstructure:"working_dir"`
	Env             map[string]string `json:"env,omitempty" mapstructure:"env"`
	HealthCheck     *HealthCheckSpec  `json:"health_check,omitempty" mapstructure:"health_check"`
	RestartPolicy   restart.Policy    `json:"restart_policy" mapstructure:"restart_policy"`
	ResourceLimits  *ResourceLimits   `json:"resource_limits,omitempty" mapstructure:"resource_limits"`
	Schedule        string            `json:"schedule,omitempty" mapstructure:"schedule"`
	Tags            []string          `json:"tags,omitempty" mapstructure:"tags"`
	StopTimeoutSecs uint64            `json:"stop_timeout_secs" mapstructure:"stop_timeout_secs"`
	LogConfig       *LogConfig        `json:"log_config,omitempty" mapstructure:"log_config"`
	Description     string            `json:"description,omitempty" mapstructure:"description"`
	User            string            `json:"user,omitempty" mapstructure:"user"`
}

// ApplyDefaults fills in the defaults spec.md §3 calls for on a freshly
// decoded spec (e.g. from an Add request or a config file).
func (s *Spec) ApplyDefaults() {
	if s.StopTimeoutSecs == 0 {
		s.StopTimeoutSecs = 30
	}
	if s.HealthCheck != nil {
		s.HealthCheck.applyDefaults()
	}
	if s.LogConfig != nil {
		s.LogConfig.applyDefaults()
	}
	s.RestartPolicy.ApplyDefaults()
}

// Validate rejects specs that cannot be registered. It does not touch the
// filesystem or network; cron expression syntax is validated by the
// scheduler package at Add/restore time, not here.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("daemon spec: name must not be empty")
	}
	if len(s.Command) == 0 {
		return fmt.Errorf("daemon spec %q: command must not be empty", s.Name)
	}
	if s.HealthCheck != nil {
		switch s.HealthCheck.Type {
		case HealthHTTP, HealthTCP, HealthCommand:
		default:
			return fmt.Errorf("daemon spec %q: unknown health check type %q", s.Name, s.HealthCheck.Type)
		}
		if strings.TrimSpace(s.HealthCheck.Target) == "" {
			return fmt.Errorf("daemon spec %q: health check target must not be empty", s.Name)
		}
	}
	if err := s.RestartPolicy.Validate(); err != nil {
		return fmt.Errorf("daemon spec %q: %w", s.Name, err)
	}
	return nil
}
