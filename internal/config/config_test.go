package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBundleTOML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "syspulse.toml")
	data := `
use_os_env = false

[env]
FOO = "bar"

[[daemons]]
name = "web"
command = ["sleep", "60"]
working_dir = "/tmp"
stop_timeout_secs = 5

[daemons.restart_policy]
policy = "always"
backoff_base_secs = 1.0
backoff_max_secs = 30.0
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	b, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(b.Daemons) != 1 {
		t.Fatalf("expected 1 daemon, got %d", len(b.Daemons))
	}
	d := b.Daemons[0]
	if d.Name != "web" || len(d.Command) != 2 || d.Command[0] != "sleep" {
		t.Fatalf("unexpected daemon spec: %+v", d)
	}
	if d.RestartPolicy.Kind != "always" {
		t.Fatalf("expected restart policy always, got %q", d.RestartPolicy.Kind)
	}

	found := false
	for _, kv := range b.GlobalEnv {
		if kv == "FOO=bar" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected FOO=bar in global env, got %v", b.GlobalEnv)
	}
}

func TestLoadDirSkipsUnsupportedAndHidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.yaml"), "name: one\ncommand: [\"sleep\", \"1\"]\n")
	writeFile(t, filepath.Join(dir, "two.json"), `{"name":"two","command":["sleep","2"]}`)
	writeFile(t, filepath.Join(dir, "ignored.txt"), "not a spec")
	writeFile(t, filepath.Join(dir, ".hidden.yaml"), "name: hidden\ncommand: [\"sleep\", \"1\"]\n")

	specs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d: %+v", len(specs), specs)
	}
}

func TestLoadDirMissingReturnsEmpty(t *testing.T) {
	specs, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(specs) != 0 {
		t.Fatalf("expected no specs, got %d", len(specs))
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "# comment\nFOO=bar\nBAZ=\"quoted value\"\n\n")

	env, err := loadEnvFile(path)
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if env["FOO"] != "bar" || env["BAZ"] != "quoted value" {
		t.Fatalf("unexpected env: %+v", env)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
