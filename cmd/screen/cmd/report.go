package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-screening/internal/application/report"
	"github.com/garyjia/expense-screening/internal/application/service"
	"github.com/garyjia/expense-screening/internal/domain/entity"
)

type reportOptions struct {
	format  string
	xlsx    string
	notify  bool
	narrate bool
}

type reportOutput struct {
	Summary      *report.Summary `json:"summary"`
	Narrative    string          `json:"narrative,omitempty"`
	NotifyStatus string          `json:"notify_status"`
	Recorded     bool            `json:"recorded"`
	Archived     bool            `json:"archived"`
}

func newReportCommand(a *app) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report [file|-]",
		Short: "Summarize a batch of expense records",
		Long: `Screen the input and print a batch summary: counts, amounts, totals
per tier and how often each check fired.

Examples:
  screen report expenses.json
  screen report expenses.json --format json
  screen report expenses.json --xlsx report.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "also write the report workbook to this path")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "deliver the run digest to Lark when enabled")
	cmd.Flags().BoolVar(&opts.narrate, "narrate", false, "ask the narrator for a run narrative when enabled")

	return cmd
}

func runReport(cmd *cobra.Command, args []string, a *app, opts *reportOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}

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

	if opts.xlsx != "" {
		if err := a.container.XLSXWriter().SaveAs(opts.xlsx, result.Summary); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(out, reportOutput{
			Summary:      result.Summary,
			Narrative:    result.Narrative,
			NotifyStatus: result.NotifyStatus,
			Recorded:     result.Recorded,
			Archived:     result.Archived,
		}, true)
	}

	fmt.Fprintln(out, result.Summary.Text())
	if result.Narrative != "" {
		fmt.Fprintf(out, "\n%s\n", result.Narrative)
	}
	if opts.xlsx != "" {
		fmt.Fprintf(out, "\nWorkbook written to %s\n", opts.xlsx)
	}
	return nil
}
