package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charliek/horn/internal/api"
	"github.com/charliek/horn/internal/constants"
	"github.com/charliek/horn/internal/daemon"
	"github.com/charliek/horn/internal/domain"
	"github.com/charliek/horn/internal/tui"
)

// errNotReachable wraps connection failures with a hint
func errNotReachable(err error) error {
	return fmt.Errorf("%w\nIs horn running? Start it with 'horn run' first", err)
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the master and its workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		status, err := client.GetStatus()
		if err != nil {
			return errNotReachable(err)
		}
		workers, err := client.GetWorkers()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			return json.NewEncoder(out).Encode(map[string]any{
				"status":  status,
				"workers": workers.Workers,
			})
		}

		fmt.Fprint(out, renderStatus(status, workers.Workers))
		return nil
	},
}

var (
	logParams = domain.LogParams{Lines: constants.DefaultLogLimit}
	logFollow bool
	logJSON   bool
)

var logsCmd = &cobra.Command{
	Use:   "logs [worker]",
	Short: "Show supervisor and worker logs",
	Args:  cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return append(getWorkerNames(), constants.MasterProcess), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		params := logParams
		if len(args) == 1 {
			params.Process = args[0]
		}
		if params.Lines < 1 {
			return fmt.Errorf("invalid lines value %d (must be a positive integer)", params.Lines)
		}

		client := newClient()
		out := cmd.OutOrStdout()
		printer := NewLogPrinter(out)
		emit := func(entry api.LogEntryResponse) {
			if logJSON {
				_ = json.NewEncoder(out).Encode(entry)
				return
			}
			printer.PrintEntry(entry)
		}

		if logFollow {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := client.StreamLogs(ctx, params, emit); err != nil {
				return errNotReachable(err)
			}
			return nil
		}

		resp, err := client.GetLogs(params)
		if err != nil {
			return errNotReachable(err)
		}
		if logJSON {
			return json.NewEncoder(out).Encode(resp)
		}
		for _, entry := range resp.Logs {
			emit(entry)
		}
		if resp.FilteredCount < resp.TotalCount {
			fmt.Fprintf(out, "\n(showing %d of %d entries)\n", resp.FilteredCount, resp.TotalCount)
		}
		return nil
	},
}

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the master (SIGQUIT, or SIGTERM with --force)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Shutdown(stopForce); err != nil {
			return errNotReachable(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Shutdown initiated")
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Replace every worker with a fresh process (SIGHUP)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Reload(); err != nil {
			return errNotReachable(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Reload initiated")
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Watch a running master in an interactive view",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !apiAddrExplicitlySet {
			if _, err := daemon.GetRunningState(stateDir()); err != nil {
				if errors.Is(err, daemon.ErrNotRunning) {
					return fmt.Errorf("horn is not running\nStart it with 'horn run -d' first")
				}
				return err
			}
		}

		client := newClient()
		if _, err := client.GetStatus(); err != nil {
			return errNotReachable(err)
		}
		return tui.Run(cmd.Context(), client)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output JSON")

	logsCmd.Flags().IntVarP(&logParams.Lines, "lines", "n", constants.DefaultLogLimit, "Number of lines to show")
	logsCmd.Flags().StringVarP(&logParams.Process, "worker", "w", "", "Only show this worker (or \"master\")")
	logsCmd.Flags().StringVar(&logParams.Pattern, "pattern", "", "Only show lines containing pattern")
	logsCmd.Flags().BoolVar(&logParams.Regex, "regex", false, "Treat pattern as a regular expression")
	logsCmd.Flags().BoolVar(&logParams.ErrorOnly, "errors", false, "Only show error lines")
	logsCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Stream new lines")
	logsCmd.Flags().BoolVar(&logJSON, "json", false, "Output JSON")
	_ = logsCmd.RegisterFlagCompletionFunc("worker", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return getWorkerNames(), cobra.ShellCompDirectiveNoFileComp
	})

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Skip the graceful drain")

	rootCmd.AddCommand(statusCmd, logsCmd, stopCmd, reloadCmd, attachCmd)
}
