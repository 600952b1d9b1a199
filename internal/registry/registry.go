// Package registry is the durable store of daemon specs and last-known
// instance state: two tables, specs and states, with upsert semantics and
// referential integrity between them (spec.md §4.3).
package registry

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cyber-boost/syspulse/internal/daemon"
	"github.com/cyber-boost/syspulse/internal/lifecycle"
	"github.com/cyber-boost/syspulse/internal/syserr"
)

const schema = `
CREATE TABLE IF NOT EXISTS specs (
	name TEXT PRIMARY KEY,
	spec_json TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS states (
	name TEXT PRIMARY KEY REFERENCES specs(name),
	instance_id TEXT NOT NULL,
	state TEXT NOT NULL,
	pid INTEGER,
	started_at TEXT,
	stopped_at TEXT,
	exit_code INTEGER,
	restart_count INTEGER NOT NULL DEFAULT 0,
	health_status TEXT NOT NULL DEFAULT 'unknown',
	stdout_log TEXT,
	stderr_log TEXT
);
`

// Registry owns the single sqlite connection backing the engine's durable
// state. It takes no internal lock: Open caps the database/sql pool at one
// open connection, which serializes callers from different instances
// (spec.md §4.3: "the store itself need not be concurrency-safe beyond
// single-connection use").
type Registry struct {
	db *sql.DB
}

// Open creates (if absent) and migrates the registry database at path.
func Open(path string) (*Registry, error) {
	dsn := path + "?_journal=WAL&_timeout=5000&_fk=1"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, syserr.Wrap(syserr.CodeDatabase, "open registry", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, syserr.Wrap(syserr.CodeDatabase, "migrate registry schema", err)
	}

	return &Registry{db: db}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

// Register inserts a brand-new spec, failing with DaemonAlreadyExists on a
// primary-key conflict.
func (r *Registry) Register(spec daemon.Spec) error {
	body, err := json.Marshal(spec)
	if err != nil {
		return syserr.Wrap(syserr.CodeSerialization, "marshal spec", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.Exec(
		`INSERT INTO specs (name, spec_json, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		spec.Name, string(body), now, now,
	)
	if err != nil {
		if isUniqueConstraint(err) {
			return syserr.DaemonAlreadyExists(spec.Name)
		}
		return syserr.Wrap(syserr.CodeDatabase, "register spec", err)
	}
	return nil
}

// Unregister deletes a spec's state row then its spec row, failing with
// DaemonNotFound if the spec does not exist.
func (r *Registry) Unregister(name string) error {
	if _, err := r.db.Exec(`DELETE FROM states WHERE name = ?`, name); err != nil {
		return syserr.Wrap(syserr.CodeDatabase, "delete state", err)
	}
	res, err := r.db.Exec(`DELETE FROM specs WHERE name = ?`, name)
	if err != nil {
		return syserr.Wrap(syserr.CodeDatabase, "delete spec", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return syserr.Wrap(syserr.CodeDatabase, "delete spec", err)
	}
	if n == 0 {
		return syserr.DaemonNotFound(name)
	}
	return nil
}

// GetSpec returns the spec registered under name.
func (r *Registry) GetSpec(name string) (daemon.Spec, error) {
	var body string
	err := r.db.QueryRow(`SELECT spec_json FROM specs WHERE name = ?`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return daemon.Spec{}, syserr.DaemonNotFound(name)
	}
	if err != nil {
		return daemon.Spec{}, syserr.Wrap(syserr.CodeDatabase, "get spec", err)
	}
	var spec daemon.Spec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return daemon.Spec{}, syserr.Wrap(syserr.CodeSerialization, "unmarshal spec", err)
	}
	return spec, nil
}

// ListSpecs returns every registered spec, ordered by name.
func (r *Registry) ListSpecs() ([]daemon.Spec, error) {
	rows, err := r.db.Query(`SELECT spec_json FROM specs ORDER BY name`)
	if err != nil {
		return nil, syserr.Wrap(syserr.CodeDatabase, "list specs", err)
	}
	defer rows.Close()

	var specs []daemon.Spec
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, syserr.Wrap(syserr.CodeDatabase, "scan spec", err)
		}
		var spec daemon.Spec
		if err := json.Unmarshal([]byte(body), &spec); err != nil {
			return nil, syserr.Wrap(syserr.CodeSerialization, "unmarshal spec", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// UpdateState upserts inst, keyed on spec_name.
func (r *Registry) UpdateState(inst *daemon.Instance) error {
	_, err := r.db.Exec(`
		INSERT INTO states (name, instance_id, state, pid, started_at, stopped_at, exit_code, restart_count, health_status, stdout_log, stderr_log)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			instance_id = excluded.instance_id,
			state = excluded.state,
			pid = excluded.pid,
			started_at = excluded.started_at,
			stopped_at = excluded.stopped_at,
			exit_code = excluded.exit_code,
			restart_count = excluded.restart_count,
			health_status = excluded.health_status,
			stdout_log = excluded.stdout_log,
			stderr_log = excluded.stderr_log
	`,
		inst.SpecName, inst.ID, string(inst.State), nullableInt(inst.PID),
		nullableTime(inst.StartedAt), nullableTime(inst.StoppedAt), nullableInt(inst.ExitCode),
		inst.RestartCount, string(inst.HealthStatus), inst.StdoutLog, inst.StderrLog,
	)
	if err != nil {
		return syserr.Wrap(syserr.CodeDatabase, "update state", err)
	}
	return nil
}

// GetState returns the persisted instance for name.
func (r *Registry) GetState(name string) (*daemon.Instance, error) {
	row := r.db.QueryRow(`
		SELECT name, instance_id, state, pid, started_at, stopped_at, exit_code, restart_count, health_status, stdout_log, stderr_log
		FROM states WHERE name = ?`, name)
	inst, err := scanInstance(row.Scan)
	if err == sql.ErrNoRows {
		return nil, syserr.DaemonNotFound(name)
	}
	if err != nil {
		return nil, syserr.Wrap(syserr.CodeDatabase, "get state", err)
	}
	return inst, nil
}

// ListStates returns every persisted instance, ordered by spec name.
func (r *Registry) ListStates() ([]*daemon.Instance, error) {
	rows, err := r.db.Query(`
		SELECT name, instance_id, state, pid, started_at, stopped_at, exit_code, restart_count, health_status, stdout_log, stderr_log
		FROM states ORDER BY name`)
	if err != nil {
		return nil, syserr.Wrap(syserr.CodeDatabase, "list states", err)
	}
	defer rows.Close()

	var out []*daemon.Instance
	for rows.Next() {
		inst, err := scanInstance(rows.Scan)
		if err != nil {
			return nil, syserr.Wrap(syserr.CodeDatabase, "scan state", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstance(scan func(dest ...any) error) (*daemon.Instance, error) {
	var (
		name, instanceID, state                      string
		pid, exitCode                                 sql.NullInt64
		startedAt, stoppedAt, healthStatus, stdoutLog, stderrLog sql.NullString
		restartCount                                  uint32
	)
	if err := scan(&name, &instanceID, &state, &pid, &startedAt, &stoppedAt, &exitCode, &restartCount, &healthStatus, &stdoutLog, &stderrLog); err != nil {
		return nil, err
	}

	inst := &daemon.Instance{
		ID:           instanceID,
		SpecName:     name,
		State:        lifecycle.State(state),
		RestartCount: restartCount,
		HealthStatus: daemon.HealthStatus(orDefault(healthStatus, "unknown")),
		StdoutLog:    stdoutLog.String,
		StderrLog:    stderrLog.String,
	}
	if pid.Valid {
		p := int(pid.Int64)
		inst.PID = &p
	}
	if exitCode.Valid {
		c := int(exitCode.Int64)
		inst.ExitCode = &c
	}
	if t, ok := parseTime(startedAt); ok {
		inst.StartedAt = &t
	}
	if t, ok := parseTime(stoppedAt); ok {
		inst.StoppedAt = &t
	}
	return inst, nil
}

func orDefault(s sql.NullString, def string) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return def
}

func parseTime(s sql.NullString) (time.Time, bool) {
	if !s.Valid || s.String == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "constraint failed")
}
