package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-screening/internal/application/service"
	"github.com/garyjia/expense-screening/internal/domain/entity"
)

type evaluateOptions struct {
	pretty  bool
	strict  bool
	notify  bool
	narrate bool
}

func newEvaluateCommand(a *app) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate [file|-]",
		Short: "Annotate expense records with policy flags",
		Long: `Screen the input and print it back with every record annotated.

A single record object yields an object, an array yields an array of the
same length and order. With --strict the command exits with status 2 when
any record was flagged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, a, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pretty, "pretty", true, "indent the JSON output")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "exit with status 2 when any record is flagged")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "deliver the run digest to Lark when enabled")
	cmd.Flags().BoolVar(&opts.narrate, "narrate", false, "ask the narrator for a run narrative when enabled")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string, a *app, opts *evaluateOptions) error {
	input, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	result, err := a.container.ScreeningService().Screen(cmd.Context(), input, service.RunOptions{
		Source:  entity.SourceCLI,
		Notify:  opts.notify,
		Narrate: opts.narrate,
	})
	if err != nil {
		return err
	}

	if err := writeJSON(cmd.OutOrStdout(), result.Output, opts.pretty); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.strict && result.Summary.Flagged > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFlagged, result.Summary.Flagged, result.Summary.Records)
	}
	return nil
}
