package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/expense-screening/internal/domain/policy"
)

type policiesOptions struct {
	tier   string
	format string
}

type tierOutput struct {
	Tier   policy.Tier    `json:"tier"`
	Limits []policy.Entry `json:"limits"`
}

type catalogOutput struct {
	Version string            `json:"version"`
	Tiers   []tierOutput      `json:"tiers"`
	Rules   []policy.RuleSpec `json:"rules,omitempty"`
}

func newPoliciesCommand(a *app) *cobra.Command {
	opts := &policiesOptions{}

	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Print the policy catalog in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPolicies(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tier, "tier", "t", "", "only print this employee tier")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")

	return cmd
}

func runPolicies(cmd *cobra.Command, a *app, opts *policiesOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}

	catalog := a.container.Catalog()
	tiers := catalog.DefinedTiers()
	if opts.tier != "" {
		tiers = []policy.Tier{policy.Tier(opts.tier)}
	}

	out := catalogOutput{Version: catalog.Version(), Rules: catalog.Rules()}
	for _, tier := range tiers {
		tp, err := catalog.Tier(tier)
		if err != nil {
			return err
		}
		out.Tiers = append(out.Tiers, tierOutput{Tier: tier, Limits: tp.Entries()})
	}

	if opts.format == "json" {
		return writeJSON(cmd.OutOrStdout(), out, true)
	}
	return writePolicyTable(cmd.OutOrStdout(), out)
}

func writePolicyTable(w io.Writer, out catalogOutput) error {
	fmt.Fprintf(w, "Policy catalog %s\n", out.Version)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, tier := range out.Tiers {
		fmt.Fprintf(tw, "\n%s\n", tier.Tier)
		for _, e := range tier.Limits {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Category, e.Kind, e.Limit)
		}
	}
	if len(out.Rules) > 0 {
		fmt.Fprintf(tw, "\nRules\n")
		for _, r := range out.Rules {
			fmt.Fprintf(tw, "  %s\t%s\n", r.Name, r.When)
		}
	}
	return tw.Flush()
}
