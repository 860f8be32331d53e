package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/config"
	"github.com/charliek/horn/internal/daemon"
	"github.com/charliek/horn/internal/handlers"
	"github.com/charliek/horn/internal/logs"
	"github.com/charliek/horn/internal/supervisor"
	"github.com/charliek/horn/internal/worker"
)

var (
	detach  bool
	noAPI   bool
	apiPort int
)

// runCmd starts the master. The same command line is re-executed for every
// worker; those processes run one worker and exit.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the master and its workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMaster(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().BoolVarP(&detach, "detach", "d", false, "Run in background (daemon mode)")
	runCmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not start the control API")
	runCmd.Flags().IntVarP(&apiPort, "port", "p", 0, "Override the API port (0 keeps the configured port)")

	rootCmd.AddCommand(runCmd)
}

func runMaster(ctx context.Context, out io.Writer) error {
	if worker.IsChild() {
		worker.TrapSignals()
	}

	path, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}
	dir := filepath.Dir(path)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if worker.IsChild() {
		return runWorker(ctx, cfg, dir)
	}

	if detach && !daemon.IsDaemonChild() {
		if err := daemon.CleanupStaleFiles(dir); err != nil {
			return err
		}
		_, err := daemon.Daemonize(out)
		return err
	}

	if daemon.IsDaemonChild() {
		logFile, err := daemon.SetupLogging(dir)
		if err != nil {
			return err
		}
		defer logFile.Close()
	}

	if err := daemon.CleanupStaleFiles(dir); err != nil {
		return err
	}
	if err := daemon.EnsureStateDir(dir); err != nil {
		return err
	}
	pidFile := daemon.NewPIDFile(daemon.PIDPath(dir))
	if err := pidFile.Create(); err != nil {
		if err == daemon.ErrPIDFileLocked {
			return daemon.ErrAlreadyRunning
		}
		return err
	}
	defer func() {
		_ = daemon.CleanupStateDir(dir)
		_ = pidFile.Release()
	}()

	logMgr := logs.NewManager(logs.DefaultManagerConfig())
	defer logMgr.Close()
	logger := newLogger(cfg, logMgr)

	sup, err := newSupervisor(cfg, dir, logger)
	if err != nil {
		return err
	}

	state := &daemon.State{
		PID:        os.Getpid(),
		StartedAt:  time.Now(),
		ConfigFile: path,
	}
	for _, w := range cfg.Workers {
		state.Workers = append(state.Workers, w.Name)
	}

	if cfg.API.IsEnabled() && !noAPI {
		server, err := startAPI(cfg, path, dir, sup, logMgr, logger, state)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if err := state.Write(dir); err != nil {
		return err
	}

	if cfg.Watch {
		watcher, err := config.NewWatcher(path, config.WatcherConfig{Logger: logger}, func() {
			reloadOnChange(path, state.Workers, sup, logger)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	logger.Info("starting horn", "config", path, "workers", len(cfg.Workers))
	return sup.Run(ctx)
}

// runWorker is the body of a re-executed worker process. Run does not return
// in this role. The worker attribute is added by the worker and its handler.
func runWorker(ctx context.Context, cfg *config.Config, dir string) error {
	logger := newLogger(cfg, nil)

	sup, err := newSupervisor(cfg, dir, logger)
	if err != nil {
		return err
	}
	return sup.Run(ctx)
}

func newLogger(cfg *config.Config, mgr *logs.Manager) *slog.Logger {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logs.NewLogger(logs.LoggerConfig{
		Level:  level,
		Format: logs.Format(cfg.Log.Format),
	}, mgr)
}

func newSupervisor(cfg *config.Config, dir string, logger *slog.Logger) (*supervisor.Supervisor, error) {
	workers, err := handlers.FromConfig(cfg, dir, logger)
	if err != nil {
		return nil, err
	}

	return supervisor.New(supervisor.Config{
		KillTimeout:   cfg.Supervisor.KillTimeoutDuration(),
		ReloadTimeout: cfg.Supervisor.ReloadTimeoutDuration(),
		TermTimeout:   cfg.Supervisor.TermTimeoutDuration(),
		TmpDir:        cfg.Supervisor.TmpDir,
		Logger:        logger,
	}, workers)
}

// startAPI binds the control API and records its address in state
func startAPI(cfg *config.Config, path, dir string, sup *supervisor.Supervisor, logMgr *logs.Manager, logger *slog.Logger, state *daemon.State) (*api.Server, error) {
	if apiPort > 0 {
		cfg.API.Port = apiPort
	}

	authEnabled := cfg.API.AuthRequired()
	var token string
	if authEnabled {
		var err error
		if token, err = daemon.GenerateToken(); err != nil {
			return nil, err
		}
		if err := daemon.SaveToken(dir, token); err != nil {
			return nil, err
		}
	} else if !config.IsLocalhost(cfg.API.Host) {
		logger.Warn("api auth disabled on a network address; any client can control this supervisor",
			"host", cfg.API.Host)
	}

	server := api.NewServer(api.ServerConfig{
		Host:        cfg.API.Host,
		Port:        cfg.API.Port,
		AuthEnabled: authEnabled,
		Token:       token,
		Logger:      logger,
	}, api.NewHandlers(sup, logMgr, path, logger))

	if err := server.Listen(); err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(server.Addr())
	if err != nil {
		return nil, fmt.Errorf("parsing api address: %w", err)
	}
	state.API = true
	state.Host = host
	state.Port, _ = strconv.Atoi(port)
	state.Auth = authEnabled

	go func() {
		if err := server.Serve(); err != nil {
			logger.Error("api server failed", "error", err)
		}
	}()

	return server, nil
}

// reloadOnChange relaunches every worker after the config file changed.
// Workers re-read the file when they start; a changed worker set needs a
// master restart.
func reloadOnChange(path string, running []string, sup *supervisor.Supervisor, logger *slog.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("config changed but does not load; keeping workers", "error", err)
		return
	}

	names := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		names = append(names, w.Name)
	}
	if !slices.Equal(names, running) {
		logger.Warn("config changed the worker set; restart horn to apply",
			"running", running, "configured", names)
		return
	}

	logger.Info("config changed, reloading workers")
	if err := sup.Reload(); err != nil {
		logger.Warn("reload failed", "error", err)
	}
}
