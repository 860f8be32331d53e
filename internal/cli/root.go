// Package cli implements the horn command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/charliek/horn/internal/config"
	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/daemon"
	"github.com/charliek/horn/internal/worker"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath           string
	apiAddr              string
	apiAddrExplicitlySet bool
	verbose              bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "horn",
	Short: "A pre-fork worker supervisor",
	Long: `horn keeps a fixed set of worker processes alive. It supports:
  - Heartbeat based idle detection and forced restarts
  - Graceful, fast and reload shutdown paths driven by signals
  - Real-time log aggregation and filtering
  - A local control API with Prometheus metrics
  - Background daemon mode`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("addr") {
			apiAddrExplicitlySet = true
		}

		clientCommands := map[string]bool{
			"status": true,
			"logs":   true,
			"stop":   true,
			"reload": true,
			"attach": true,
		}
		if clientCommands[cmd.Name()] && !apiAddrExplicitlySet {
			apiAddr = discoverAPIAddress()
		}
	},
}

// Execute runs the root command
func Execute() {
	if worker.IsChild() {
		worker.TrapSignals()
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "horn version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", constants.DefaultAPIAddress, "API address for client commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.SetVersionTemplate("horn version {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

// stateDir is the directory holding .horn: the one containing the config
// file.
func stateDir() string {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return ""
	}
	return filepath.Dir(abs)
}

// loadAPIAddrFromConfig reads the API address from the config file, or
// returns "" when the config can't be read.
func loadAPIAddrFromConfig() string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ""
	}
	return "http://" + cfg.API.Address()
}

// discoverAPIAddress finds the API of a running master.
// Priority:
// 1. State file (.horn/horn.state) written by the running master
// 2. Config file (horn.yaml)
// 3. Default address
func discoverAPIAddress() string {
	if state, err := daemon.LoadState(stateDir()); err == nil {
		if addr := state.Address(); addr != "" {
			return addr
		}
	}

	if addr := loadAPIAddrFromConfig(); addr != "" {
		return addr
	}

	return constants.DefaultAPIAddress
}

// newClient returns an API client for the discovered master, carrying its
// token when one was saved
func newClient() *Client {
	token, _ := daemon.LoadToken(stateDir())
	return NewClient(apiAddr, token)
}

// getWorkerNames returns worker names from config for shell completion
func getWorkerNames() []string {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(cfg.Workers))
	for _, w := range cfg.Workers {
		names = append(names, w.Name)
	}
	return names
}
