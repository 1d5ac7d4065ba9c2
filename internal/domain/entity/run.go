package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScreeningRun is the ledger entry of one batch screening call.
// Only aggregates are kept; records themselves are never stored.
type ScreeningRun struct {
	ID             string          `json:"id"`
	Source         string          `json:"source"`
	CatalogVersion string          `json:"catalog_version"`
	Records        int             `json:"records"`
	Accepted       int             `json:"accepted"`
	Flagged        int             `json:"flagged"`
	Duplicates     int             `json:"duplicates"`
	Unevaluated    int             `json:"unevaluated"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	FlaggedAmount  decimal.Decimal `json:"flagged_amount"`
	Findings       []RunFinding    `json:"findings"`
	Narrative      string          `json:"narrative,omitempty"`
	NotifyStatus   string          `json:"notify_status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RunFinding counts how often one check fired in a run
type RunFinding struct {
	Check string `json:"check"`
	Count int    `json:"count"`
}
