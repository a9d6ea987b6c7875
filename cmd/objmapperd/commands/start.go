package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/objmapper/objmapper/internal/logger"
	"github.com/objmapper/objmapper/internal/telemetry"
	"github.com/objmapper/objmapper/pkg/api"
	"github.com/objmapper/objmapper/pkg/config"
	"github.com/objmapper/objmapper/pkg/metrics"
	"github.com/objmapper/objmapper/pkg/objmap/server"
	"github.com/objmapper/objmapper/pkg/objmap/transport"
	"github.com/spf13/cobra"

	backendmetrics "github.com/objmapper/objmapper/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the objmapperd server",
	Long: `Start the objmapperd server with the specified configuration.

By default, the server runs in the background (daemon mode). Use
--foreground to run in the foreground for debugging or when managed
by a process supervisor.

Use --config to specify a custom configuration file, or it will use
the default location at $XDG_CONFIG_HOME/objmapper/config.yaml.

Examples:
  # Start in background (default)
  objmapperd start

  # Start in foreground
  objmapperd start --foreground

  # Start with custom config file
  objmapperd start --config /etc/objmapper/config.yaml

  # Start with environment variable overrides
  OBJM_LOGGING_LEVEL=DEBUG objmapperd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/objmapperd/objmapperd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/objmapperd/objmapperd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "objmapperd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "objmapperd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("objmapperd - multi-tier object mapper server")
	logger.Info("log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("profiling disabled")
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	manager, err := config.BuildManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build backend manager: %w", err)
	}
	srv := server.New(manager)
	if metrics.IsEnabled() {
		manager.SetMetrics(backendmetrics.NewBackendMetrics())
		srv.SetSessionMetrics(backendmetrics.NewSessionMetrics())
	}

	adminServer := api.NewServer(cfg.Admin, manager)

	var metricsServer *http.Server
	if metrics.IsEnabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	manager.StartCaching(ctx)
	defer manager.StopCaching()

	serverDone := make(chan error, 1)
	go func() {
		kind := transport.Kind(cfg.Transport.Kind)
		if kind == transport.KindUDP {
			serverDone <- srv.ServeDatagram(ctx, transportAddr(cfg.Transport))
			return
		}
		serverDone <- srv.ListenAndServe(ctx, kind, transportAddr(cfg.Transport))
	}()

	adminDone := make(chan error, 1)
	go func() {
		adminDone <- adminServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server is running, press ctrl+c to stop",
		"transport", cfg.Transport.Kind, "admin_addr", cfg.Admin.Addr)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		srv.Shutdown()
		if err := adminServer.Stop(context.Background()); err != nil {
			logger.Error("admin server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
		}
		<-serverDone
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("transport listener error", "error", err)
			return err
		}
		logger.Info("server stopped")

	case err := <-adminDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("admin server error", "error", err)
			return err
		}
	}

	return nil
}

// transportAddr resolves the listen address for the configured
// transport kind: a unix socket path, or a host:port pair.
func transportAddr(cfg config.TransportConfig) string {
	if cfg.Kind == "unix" {
		return cfg.SocketPath
	}
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// startDaemon re-execs the current binary with --foreground, detached
// into its own session, and returns immediately.
func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("objmapperd is already running (PID %d)", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logFileHandle.Close()

	fmt.Printf("objmapperd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'objmapperd status' to check server status")

	return nil
}

