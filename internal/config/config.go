// Package config loads daemon bundles: files declaring one or more
// daemon.Spec plus optional global environment injection, in the
// TOML/YAML/JSON formats viper already reads for this project.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

// Bundle is a config file's top-level shape: a handful of daemons plus the
// global environment options syspulsed applies to every one of them.
type Bundle struct {
	UseOSEnv bool              `mapstructure:"use_os_env"`
	EnvFiles []string          `mapstructure:"env_files"`
	Env      map[string]string `mapstructure:"env"`
	Daemons  []daemon.Spec     `mapstructure:"daemons"`

	// GlobalEnv is computed from UseOSEnv/EnvFiles/Env after loading, in
	// the "KEY=VALUE" form Engine.SetGlobalEnv expects.
	GlobalEnv []string
}

// Load reads a single bundle file (TOML, YAML, or JSON, by extension) and
// computes its GlobalEnv.
func Load(path string) (*Bundle, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var b Bundle
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	globalEnv, err := b.computeGlobalEnv()
	if err != nil {
		return nil, err
	}
	b.GlobalEnv = globalEnv
	return &b, nil
}

// LoadDir reads every supported config file directly inside dir (not
// recursively), each expected to decode to a single daemon.Spec, the way
// the supervisor's programs-directory convention lays out one file per
// managed process. Hidden files and unsupported extensions are skipped.
func LoadDir(dir string) ([]daemon.Spec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	supported := map[string]bool{".toml": true, ".yaml": true, ".yml": true, ".json": true}

	var specs []daemon.Spec
	for _, de := range entries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if !supported[ext] {
			continue
		}

		full := filepath.Join(dir, de.Name())
		v := viper.New()
		v.SetConfigFile(full)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", full, err)
		}

		var spec daemon.Spec
		if err := v.Unmarshal(&spec); err != nil {
			return nil, fmt.Errorf("config: unmarshal %s: %w", full, err)
		}
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("config: %s: daemon requires a name", full)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (b *Bundle) computeGlobalEnv() ([]string, error) {
	merged := make(map[string]string)

	if b.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				merged[kv[:i]] = kv[i+1:]
			}
		}
	}

	for _, f := range b.EnvFiles {
		fileEnv, err := loadEnvFile(f)
		if err != nil {
			return nil, err
		}
		for k, v := range fileEnv {
			merged[k] = v
		}
	}

	for k, v := range b.Env {
		merged[k] = v
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out, nil
}

// loadEnvFile parses a dotenv-style KEY=VALUE file, one assignment per
// non-blank, non-comment line, with optional quoting.
func loadEnvFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read env file: %w", err)
	}

	out := make(map[string]string)
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("config: %s:%d: invalid env line %q", path, i+1, line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if len(value) >= 2 {
			quoted := (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')
			if quoted {
				value = value[1 : len(value)-1]
			}
		}
		out[key] = value
	}
	return out, nil
}
