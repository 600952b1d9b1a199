// Command syspulsed is the supervisor daemon: it loads the registry, restores
// any daemons that were running before the last stop, and serves the control
// socket until asked to shut down.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cyber-boost/syspulse/internal/config"
	"github.com/cyber-boost/syspulse/internal/engine"
	"github.com/cyber-boost/syspulse/internal/history/factory"
	"github.com/cyber-boost/syspulse/internal/ipc"
	"github.com/cyber-boost/syspulse/internal/logger"
	"github.com/cyber-boost/syspulse/internal/metrics"
	"github.com/cyber-boost/syspulse/internal/paths"
	"github.com/cyber-boost/syspulse/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath    string
		programsDir   string
		metricsListen string
		historyDSN    string
		verbose       bool
	)
	flag.StringVar(&configPath, "config", "", "path to a TOML/YAML/JSON daemon bundle to load at startup")
	flag.StringVar(&programsDir, "programs-dir", "", "directory of one-daemon-per-file specs to load at startup")
	flag.StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus /metrics on (e.g. :9090); empty disables it")
	flag.StringVar(&historyDSN, "history-dsn", "", "DSN of a history sink to export start/stop events to (clickhouse://, opensearch://, postgres://, sqlite://); empty disables it")
	flag.BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(logger.NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}, true)))

	if err := run(configPath, programsDir, metricsListen, historyDSN); err != nil {
		slog.Error("syspulsed: fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath, programsDir, metricsListen, historyDSN string) error {
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("ensure data dirs: %w", err)
	}

	if err := writePIDFile(); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer removePIDFile()

	dbPath, err := paths.DBPath()
	if err != nil {
		return err
	}
	reg, err := registry.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = reg.Close() }()

	eng := engine.New(reg)

	if historyDSN != "" {
		sink, err := factory.NewSinkFromDSN(historyDSN)
		if err != nil {
			return fmt.Errorf("open history sink: %w", err)
		}
		eng.SetHistorySink(sink)
	}

	if err := loadBundles(eng, configPath, programsDir); err != nil {
		return err
	}

	if err := eng.Restore(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	if metricsListen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			slog.Warn("syspulsed: metrics registration failed", "error", err)
		} else {
			go serveMetrics(metricsListen)
		}
	}

	socketPath, err := paths.SocketPath()
	if err != nil {
		return err
	}
	ln, err := ipc.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}

	server := ipc.NewServer(ln, eng.Handle)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve() }()

	slog.Info("syspulsed: ready", "socket", socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("syspulsed: received signal, shutting down", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			slog.Error("syspulsed: control socket server stopped", "error", err)
		}
	}

	_ = server.Close()
	eng.Shutdown(30 * time.Second)
	return nil
}

func loadBundles(eng *engine.Engine, configPath, programsDir string) error {
	if configPath != "" {
		bundle, err := config.Load(configPath)
		if err != nil {
			return err
		}
		eng.SetGlobalEnv(bundle.GlobalEnv)
		for _, spec := range bundle.Daemons {
			if _, err := eng.Add(spec); err != nil {
				return fmt.Errorf("add daemon %q from %s: %w", spec.Name, configPath, err)
			}
		}
	}
	if programsDir != "" {
		specs, err := config.LoadDir(programsDir)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			if _, err := eng.Add(spec); err != nil {
				return fmt.Errorf("add daemon %q from %s: %w", spec.Name, programsDir, err)
			}
		}
	}
	return nil
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("syspulsed: metrics server stopped", "error", err)
	}
}

func writePIDFile() error {
	path, err := paths.PIDPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile() {
	path, err := paths.PIDPath()
	if err != nil {
		return
	}
	_ = os.Remove(path)
}
