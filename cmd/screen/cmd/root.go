// Package cmd provides the commands of the screen CLI.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/config"
	"github.com/garyjia/expense-screening/internal/container"
	"github.com/garyjia/expense-screening/internal/version"
	"github.com/garyjia/expense-screening/pkg/utils"
)

// ErrFlagged is returned in strict mode when any record was flagged
var ErrFlagged = errors.New("records were flagged")

// app carries the state shared by every command of one invocation
type app struct {
	configPath string
	verbose    bool

	logger    *zap.Logger
	container *container.Container
}

// Execute runs the CLI until it finishes or is interrupted
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	defer a.close()
	return root.ExecuteContext(ctx)
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "screen",
		Short: "Screen expense records against the reimbursement policy",
		Long: `screen evaluates expense records against the tiered reimbursement
policy and flags violations, duplicates and stale bills.

Input is a JSON record object or an array of record objects, read from a
file or from stdin when the path is "-" or omitted.

Examples:
  screen evaluate expenses.json
  cat expenses.json | screen evaluate --strict
  screen report expenses.json --xlsx report.xlsx
  screen policies --tier "Executive Level"`,
		SilenceUsage:      true,
		PersistentPreRunE: a.start,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (defaults and environment only when empty)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging on stderr")

	root.AddCommand(newEvaluateCommand(a))
	root.AddCommand(newReportCommand(a))
	root.AddCommand(newPoliciesCommand(a))
	root.AddCommand(newVersionCommand())

	return root, a
}

// start loads configuration and starts the container
func (a *app) start(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	a.logger, err = utils.NewLogger(utils.CLILoggerConfig(a.verbose))
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	c, err := container.New(cfg, a.logger)
	if err != nil {
		return err
	}
	if err := c.Start(cmd.Context()); err != nil {
		return err
	}
	a.container = c
	return nil
}

func (a *app) close() {
	if a.container != nil {
		if err := a.container.Close(); err != nil {
			a.logger.Error("Failed to close container", zap.Error(err))
		}
		a.container = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// no container needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("screen"))
		},
	}
}

// readInput decodes the JSON input named by args, or stdin
func readInput(cmd *cobra.Command, args []string) (any, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return screening.Decode(r)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
