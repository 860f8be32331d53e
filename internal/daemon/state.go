package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StateDirName is the name of the directory storing runtime state
	StateDirName = ".horn"
	// StateFileName is the name of the state file
	StateFileName = "horn.state"
	// PIDFileName is the name of the PID file
	PIDFileName = "horn.pid"
	// LogFileName is the name of the daemon log file
	LogFileName = "horn.log"
	// TokenFileName holds the API bearer token when auth is enabled
	TokenFileName = "token"
)

// State describes a running master so client commands can find it.
//
// The master writes it once at startup; clients only read it.
type State struct {
	PID        int       `json:"pid"`
	API        bool      `json:"api"`
	Port       int       `json:"port,omitempty"`
	Host       string    `json:"host,omitempty"`
	Auth       bool      `json:"auth,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	ConfigFile string    `json:"config_file"`
	Workers    []string  `json:"workers"`
}

// Address returns the API base URL, or "" when the API is disabled
func (s *State) Address() string {
	if !s.API {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

func (s *State) validate() error {
	if s.PID <= 0 {
		return fmt.Errorf("invalid PID: %d", s.PID)
	}
	if s.ConfigFile == "" {
		return fmt.Errorf("config file cannot be empty")
	}
	if !s.API {
		return nil
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	return nil
}

// Write writes the state file under dir
func (s *State) Write(dir string) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := EnsureStateDir(dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	if err := writeFileSync(StatePath(dir), data); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// LoadState reads the state file under dir
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return &state, nil
}

// StateDir returns the .horn directory under dir, or under the working
// directory when dir is empty.
func StateDir(dir string) string {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return StateDirName
		}
	}
	return filepath.Join(dir, StateDirName)
}

// StatePath returns the full path to the state file
func StatePath(dir string) string {
	return filepath.Join(StateDir(dir), StateFileName)
}

// PIDPath returns the full path to the PID file
func PIDPath(dir string) string {
	return filepath.Join(StateDir(dir), PIDFileName)
}

// LogPath returns the full path to the daemon log file
func LogPath(dir string) string {
	return filepath.Join(StateDir(dir), LogFileName)
}

// TokenPath returns the full path to the API token file
func TokenPath(dir string) string {
	return filepath.Join(StateDir(dir), TokenFileName)
}

// EnsureStateDir creates the .horn directory if it doesn't exist
func EnsureStateDir(dir string) error {
	if err := os.MkdirAll(StateDir(dir), 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// CleanupStateDir removes the state, pid and token files. The log file is
// kept.
func CleanupStateDir(dir string) error {
	for _, path := range []string{StatePath(dir), PIDPath(dir), TokenPath(dir)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
