// Package logs provides the rotating stdout/stderr writers each running
// daemon instance writes to, adapted from the supervisor's lumberjack-based
// logging idiom to daemon.LogConfig's byte-sized, retain-count-based
// rotation (spec.md §3 LogConfig, §6 persistent layout).
package logs

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cyber-boost/syspulse/internal/daemon"
)

const (
	defaultMaxSizeBytes = 50 * 1024 * 1024
	defaultRetainCount  = 5
)

// Writers returns rotating stdout/stderr writers for a daemon instance,
// rooted at dir (conventionally paths.DaemonLogDir(name)). Returned writers
// must be closed by the caller when the instance is done logging.
func Writers(dir string, cfg *daemon.LogConfig) (stdout, stderr io.WriteCloser) {
	maxSize := defaultMaxSizeBytes
	retain := defaultRetainCount
	compress := false
	if cfg != nil {
		if cfg.MaxSizeBytes > 0 {
			maxSize = int(cfg.MaxSizeBytes)
		}
		if cfg.RetainCount > 0 {
			retain = int(cfg.RetainCount)
		}
		compress = cfg.CompressRotated
	}

	stdout = &lj.Logger{
		Filename:   filepath.Join(dir, "stdout.log"),
		MaxSize:    maxSize / (1024 * 1024),
		MaxBackups: retain,
		Compress:   compress,
	}
	stderr = &lj.Logger{
		Filename:   filepath.Join(dir, "stderr.log"),
		MaxSize:    maxSize / (1024 * 1024),
		MaxBackups: retain,
		Compress:   compress,
	}
	return stdout, stderr
}

// Paths returns the stdout/stderr log file paths for dir without opening
// them, for recording in a daemon.Instance's StdoutLog/StderrLog fields.
func Paths(dir string) (stdoutPath, stderrPath string) {
	return filepath.Join(dir, "stdout.log"), filepath.Join(dir, "stderr.log")
}

// Tail returns up to the last n lines of the file at path, serving the
// Logs request (spec.md §6). A missing file returns an empty slice, not an
// error: a daemon that has never produced output has no log yet.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		all = append(all, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}
