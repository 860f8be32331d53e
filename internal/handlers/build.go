package handlers

import (
	"fmt"
	"log/slog"

	"github.com/charliek/horn/internal/config"
	"github.com/charliek/horn/internal/logs"
	"github.com/charliek/horn/internal/worker"
)

// FromConfig turns the configured workers into supervisor worker configs, in
// file order. Env files are resolved against configDir.
func FromConfig(cfg *config.Config, configDir string, logger *slog.Logger) ([]worker.Config, error) {
	workers := make([]worker.Config, 0, len(cfg.Workers))
	for _, wc := range cfg.Workers {
		env, err := config.LoadWorkerEnv(cfg.EnvFile, wc.EnvFile, wc.Env, configDir)
		if err != nil {
			return nil, fmt.Errorf("worker %s: %w", wc.Name, err)
		}
		envList := config.EnvList(env)

		workers = append(workers, worker.Config{
			Name:        wc.Name,
			Handler:     handlerFor(wc, envList, logger.With(logs.WorkerKey, wc.Name)),
			IdleTimeout: wc.IdleTimeoutDuration(),
			Env:         envList,
		})
	}
	return workers, nil
}

func handlerFor(wc config.WorkerConfig, env []string, logger *slog.Logger) worker.Handler {
	var h worker.Handler
	if wc.Sleep != "" {
		h = &Sleep{WorkerName: wc.Name, D: wc.SleepDuration()}
	} else {
		h = &Command{
			WorkerName: wc.Name,
			Cmd:        wc.Cmd,
			Env:        env,
			Interval:   wc.IntervalDuration(),
			Logger:     logger,
		}
	}
	return Recycle(h, wc.Iterations)
}
