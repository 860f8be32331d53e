package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/domain"
)

// Config represents the top-level horn configuration
type Config struct {
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	EnvFile    string           `yaml:"env_file"`
	// Watch relaunches every worker when the config file changes
	Watch bool `yaml:"watch"`
	// Workers keeps the order of the file
	Workers []WorkerConfig `yaml:"-"`
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil = enabled
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Auth    *bool  `yaml:"auth,omitempty"` // nil = required unless bound to localhost
}

// IsEnabled reports whether the API server should run
func (c APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AuthRequired reports whether API clients must present the bearer token
func (c APIConfig) AuthRequired() bool {
	if c.Auth != nil {
		return *c.Auth
	}
	return !IsLocalhost(c.Host)
}

// IsLocalhost reports whether host only accepts local connections
func IsLocalhost(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// Address returns host:port
func (c APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig defines supervisor logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SupervisorConfig holds the master's timeouts as duration strings
type SupervisorConfig struct {
	KillTimeout   string `yaml:"kill_timeout"`
	ReloadTimeout string `yaml:"reload_timeout"`
	TermTimeout   string `yaml:"term_timeout"`
	TmpDir        string `yaml:"tmp_dir"`
}

// KillTimeoutDuration returns the graceful shutdown bound
func (c SupervisorConfig) KillTimeoutDuration() time.Duration {
	return durationOr(c.KillTimeout, constants.DefaultKillTimeout)
}

// ReloadTimeoutDuration returns the reload bound
func (c SupervisorConfig) ReloadTimeoutDuration() time.Duration {
	return durationOr(c.ReloadTimeout, constants.DefaultReloadTimeout)
}

// TermTimeoutDuration returns the fast shutdown bound
func (c SupervisorConfig) TermTimeoutDuration() time.Duration {
	return durationOr(c.TermTimeout, constants.DefaultTermTimeout)
}

// WorkerConfig represents a worker that can be either a simple string
// command or an expanded form with additional options
type WorkerConfig struct {
	Name string `yaml:"-"`
	// Cmd is run with sh -c once per iteration
	Cmd string `yaml:"cmd"`
	// Sleep makes a worker that only sleeps, mostly useful for trying things out
	Sleep string `yaml:"sleep"`
	// Interval is the pause between two runs of Cmd
	Interval string `yaml:"interval"`
	// IdleTimeout bounds a single iteration
	IdleTimeout string `yaml:"idle_timeout"`
	// Iterations recycles the worker process after that many runs (0 = never)
	Iterations int               `yaml:"iterations"`
	Env        map[string]string `yaml:"env"`
	EnvFile    string            `yaml:"env_file"`
}

// IntervalDuration returns the pause between runs
func (w WorkerConfig) IntervalDuration() time.Duration {
	return durationOr(w.Interval, 0)
}

// IdleTimeoutDuration returns the heartbeat timeout
func (w WorkerConfig) IdleTimeoutDuration() time.Duration {
	return durationOr(w.IdleTimeout, constants.DefaultIdleTimeout)
}

// SleepDuration returns the sleep handler period
func (w WorkerConfig) SleepDuration() time.Duration {
	return durationOr(w.Sleep, 0)
}

// Worker returns the named worker
func (c *Config) Worker(name string) (WorkerConfig, bool) {
	for _, w := range c.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return WorkerConfig{}, false
}

// rawConfig is used for initial YAML parsing to handle the flexible worker
// format and keep the workers in file order
type rawConfig struct {
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	EnvFile    string           `yaml:"env_file"`
	Watch      bool             `yaml:"watch"`
	Workers    yaml.Node        `yaml:"workers"`
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	// First check if file exists
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	// Check file permissions for security
	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	config := &Config{
		API:        raw.API,
		Log:        raw.Log,
		Supervisor: raw.Supervisor,
		EnvFile:    raw.EnvFile,
		Watch:      raw.Watch,
	}

	// Apply defaults
	if config.API.Port == 0 {
		config.API.Port = constants.DefaultAPIPort
	}
	if config.API.Host == "" {
		config.API.Host = constants.DefaultAPIHost
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	workers, err := parseWorkers(&raw.Workers)
	if err != nil {
		return nil, err
	}
	config.Workers = workers

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// parseWorkers walks the workers mapping in document order
func parseWorkers(node *yaml.Node) ([]WorkerConfig, error) {
	if node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("workers: expected a mapping, got %s", kindName(node.Kind))
	}

	workers := make([]WorkerConfig, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		w, err := parseWorkerConfig(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("worker %q: %w", name, err)
		}
		w.Name = name
		workers = append(workers, w)
	}
	return workers, nil
}

// parseWorkerConfig handles both simple and expanded worker definitions
func parseWorkerConfig(value *yaml.Node) (WorkerConfig, error) {
	switch value.Kind {
	case yaml.ScalarNode:
		// Simple form: mailer: ./bin/send-mail
		return WorkerConfig{Cmd: value.Value}, nil
	case yaml.MappingNode:
		var w WorkerConfig
		if err := value.Decode(&w); err != nil {
			return WorkerConfig{}, fmt.Errorf("decoding worker config: %w", err)
		}
		return w, nil
	default:
		return WorkerConfig{}, fmt.Errorf("invalid worker configuration type: %s", kindName(value.Kind))
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// durationOr parses s, falling back to def when s is empty or invalid.
// Validate rejects invalid values before this is reached.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
