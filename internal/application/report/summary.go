// Package report aggregates batch outcomes into a summary used by the API,
// the CLI, the XLSX export and run notifications.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
)

// Row is one record of the batch as it appears in a report
type Row struct {
	Index         int             `json:"index"`
	InvoiceNumber string          `json:"invoice_number"`
	Tier          policy.Tier     `json:"tier"`
	Amount        decimal.Decimal `json:"amount"`
	AmountValid   bool            `json:"amount_valid"`
	Duplicate     bool            `json:"duplicate"`
	Accepted      bool            `json:"accepted"`
	Flags         []string        `json:"flags"`
}

// TierTotals aggregates rows of one tier
type TierTotals struct {
	Records int             `json:"records"`
	Flagged int             `json:"flagged"`
	Amount  decimal.Decimal `json:"amount"`
}

// CheckCount is how often one check fired
type CheckCount struct {
	Check rules.Check `json:"check"`
	Count int         `json:"count"`
}

// Summary is the aggregate view of one screening run
type Summary struct {
	RunID          string                     `json:"run_id"`
	CatalogVersion string                     `json:"catalog_version"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	Records        int                        `json:"records"`
	Accepted       int                        `json:"accepted"`
	Flagged        int                        `json:"flagged"`
	Duplicates     int                        `json:"duplicates"`
	Unevaluated    int                        `json:"unevaluated"`
	TotalAmount    decimal.Decimal            `json:"total_amount"`
	FlaggedAmount  decimal.Decimal            `json:"flagged_amount"`
	FlaggedPercent decimal.Decimal            `json:"flagged_percent"`
	ByTier         map[policy.Tier]TierTotals `json:"by_tier"`
	ByCheck        []CheckCount               `json:"by_check"`
	Rows           []Row                      `json:"rows"`
}

// Options describe the run being summarized
type Options struct {
	CatalogVersion string
	Now            time.Time

	// Flags renders an outcome's flag list; defaults to the violation
	// messages with "Accepted" for clean records
	Flags func(screening.Outcome) []string
}

// Summarize builds a summary from outcomes. Amounts that could not be
// read are counted as records but excluded from totals.
func Summarize(outcomes []screening.Outcome, opts Options) *Summary {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Flags == nil {
		opts.Flags = defaultFlags
	}

	s := &Summary{
		RunID:          uuid.NewString(),
		CatalogVersion: opts.CatalogVersion,
		GeneratedAt:    opts.Now.UTC(),
		Records:        len(outcomes),
		TotalAmount:    decimal.Zero,
		FlaggedAmount:  decimal.Zero,
		FlaggedPercent: decimal.Zero,
		ByTier:         make(map[policy.Tier]TierTotals),
		Rows:           make([]Row, 0, len(outcomes)),
	}

	checks := make(map[rules.Check]int)
	for _, o := range outcomes {
		amount := decimal.Zero
		if o.AmountValid {
			amount = decimal.NewFromInt(o.Amount)
		}

		tier := s.ByTier[o.Tier]
		tier.Records++
		tier.Amount = tier.Amount.Add(amount)
		s.TotalAmount = s.TotalAmount.Add(amount)

		if o.Accepted() {
			s.Accepted++
		} else {
			s.Flagged++
			tier.Flagged++
			s.FlaggedAmount = s.FlaggedAmount.Add(amount)
		}
		if o.Duplicate {
			s.Duplicates++
		}
		for _, v := range o.Violations {
			checks[v.Check]++
			if v.Check == rules.CheckEvaluation {
				s.Unevaluated++
			}
		}
		s.ByTier[o.Tier] = tier

		s.Rows = append(s.Rows, Row{
			Index:         o.Index,
			InvoiceNumber: o.InvoiceNumber,
			Tier:          o.Tier,
			Amount:        amount,
			AmountValid:   o.AmountValid,
			Duplicate:     o.Duplicate,
			Accepted:      o.Accepted(),
			Flags:         opts.Flags(o),
		})
	}

	if s.Records > 0 {
		s.FlaggedPercent = decimal.NewFromInt(int64(s.Flagged)).
			Div(decimal.NewFromInt(int64(s.Records))).
			Mul(decimal.NewFromInt(100)).
			Round(1)
	}

	s.ByCheck = make([]CheckCount, 0, len(checks))
	for check, count := range checks {
		s.ByCheck = append(s.ByCheck, CheckCount{Check: check, Count: count})
	}
	sort.Slice(s.ByCheck, func(i, j int) bool {
		if s.ByCheck[i].Count != s.ByCheck[j].Count {
			return s.ByCheck[i].Count > s.ByCheck[j].Count
		}
		return s.ByCheck[i].Check < s.ByCheck[j].Check
	})

	return s
}

func defaultFlags(o screening.Outcome) []string {
	if o.Accepted() {
		return []string{screening.DefaultAcceptedMarker}
	}
	return rules.Messages(o.Violations)
}

// Tiers returns the tiers present in the summary, executive first and
// unknown tiers last in name order
func (s *Summary) Tiers() []policy.Tier {
	tiers := make([]policy.Tier, 0, len(s.ByTier))
	for tier := range s.ByTier {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool {
		ri, rj := tiers[i].Rank(), tiers[j].Rank()
		if ri < 0 {
			ri = len(policy.Tiers())
		}
		if rj < 0 {
			rj = len(policy.Tiers())
		}
		if ri != rj {
			return ri < rj
		}
		return tiers[i] < tiers[j]
	})
	return tiers
}

// Text renders a short plain-text digest
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expense screening run %s\n", s.RunID)
	if s.CatalogVersion != "" {
		fmt.Fprintf(&b, "Policy catalog: %s\n", s.CatalogVersion)
	}
	fmt.Fprintf(&b, "Records: %d (accepted %d, flagged %d, %s%%)\n",
		s.Records, s.Accepted, s.Flagged, s.FlaggedPercent.StringFixed(1))
	if s.Duplicates > 0 {
		fmt.Fprintf(&b, "Duplicate invoices: %d\n", s.Duplicates)
	}
	if s.Unevaluated > 0 {
		fmt.Fprintf(&b, "Not evaluated: %d\n", s.Unevaluated)
	}
	fmt.Fprintf(&b, "Total amount: %s (flagged %s)\n", s.TotalAmount.String(), s.FlaggedAmount.String())

	for _, tier := range s.Tiers() {
		totals := s.ByTier[tier]
		fmt.Fprintf(&b, "  %s: %d records, %d flagged, amount %s\n",
			tier, totals.Records, totals.Flagged, totals.Amount.String())
	}
	if len(s.ByCheck) > 0 {
		b.WriteString("Top findings:\n")
		for i, c := range s.ByCheck {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  %s: %d\n", c.Check, c.Count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
