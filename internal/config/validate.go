package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charliek/horn/internal/domain"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors
func Validate(config *Config) error {
	var errs []string

	// Validate API config
	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	switch config.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format: must be text or json, got %q", config.Log.Format))
	}

	errs = appendDuration(errs, "supervisor.kill_timeout", config.Supervisor.KillTimeout)
	errs = appendDuration(errs, "supervisor.reload_timeout", config.Supervisor.ReloadTimeout)
	errs = appendDuration(errs, "supervisor.term_timeout", config.Supervisor.TermTimeout)

	// Validate workers
	if len(config.Workers) == 0 {
		errs = append(errs, "workers: at least one worker must be defined")
	}

	seen := make(map[string]bool, len(config.Workers))
	for _, w := range config.Workers {
		if err := ValidateWorkerName(w.Name); err != nil {
			errs = append(errs, fmt.Sprintf("workers.%s", err))
			continue
		}
		if seen[w.Name] {
			errs = append(errs, fmt.Sprintf("workers.%s: defined more than once", w.Name))
		}
		seen[w.Name] = true

		switch {
		case w.Cmd == "" && w.Sleep == "":
			errs = append(errs, fmt.Sprintf("workers.%s.cmd: command is required", w.Name))
		case w.Cmd != "" && w.Sleep != "":
			errs = append(errs, fmt.Sprintf("workers.%s: cmd and sleep are mutually exclusive", w.Name))
		}

		prefix := "workers." + w.Name
		errs = appendDuration(errs, prefix+".sleep", w.Sleep)
		errs = appendDuration(errs, prefix+".interval", w.Interval)
		errs = appendDuration(errs, prefix+".idle_timeout", w.IdleTimeout)
		if w.Iterations < 0 {
			errs = append(errs, fmt.Sprintf("%s.iterations: must be non-negative", prefix))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// appendDuration records an error for a set field that is not a positive
// duration
func appendDuration(errs []string, field, value string) []string {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, fmt.Sprintf("%s: invalid duration %q", field, value))
	}
	if d <= 0 {
		return append(errs, fmt.Sprintf("%s: must be positive, got %s", field, value))
	}
	return errs
}

// ValidateWorkerName checks if a worker name is valid
func ValidateWorkerName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "worker name cannot be empty"}
	}
	if strings.ContainsAny(name, " \t\n/\\=") {
		return &ValidationError{Field: "name", Message: "worker name cannot contain whitespace, '=' or path separators"}
	}
	return nil
}
