package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/application/report"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/domain/entity"
	"github.com/garyjia/expense-screening/internal/domain/policy"
)

// Logger is the structured logger the services write to
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReportRenderer renders a summary as a downloadable workbook. Bytes
// includes one row per record; SummaryBytes holds aggregates only and is
// what gets archived.
type ReportRenderer interface {
	Bytes(s *report.Summary) ([]byte, error)
	SummaryBytes(s *report.Summary) ([]byte, error)
}

// RunOptions control the side effects of one screening call
type RunOptions struct {
	Source  string // entity.SourceAPI or entity.SourceCLI
	Notify  bool
	Narrate bool
}

// RunResult is everything a screening call produced
type RunResult struct {
	// Output has the shape of the input with every record annotated
	Output       any
	Outcomes     []screening.Outcome
	Summary      *report.Summary
	Narrative    string
	NotifyStatus string
	Recorded     bool
	Archived     bool
}

// ScreeningService screens expense batches and manages their run history
type ScreeningService interface {
	Screen(ctx context.Context, input any, opts RunOptions) (*RunResult, error)
	Catalog() *policy.Catalog
	GetRun(ctx context.Context, id string) (*entity.ScreeningRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error)
	ArchivedReport(ctx context.Context, runID string) ([]byte, error)
}

// ScreeningDeps wires a ScreeningService. Only Processor and Logger are
// required; every other collaborator switches its feature off when nil.
type ScreeningDeps struct {
	Processor *screening.Processor
	Runs      port.RunRepository
	TxManager port.TransactionManager
	Archive   port.ReportArchive
	Renderer  ReportRenderer
	Notifier  port.Notifier
	Narrator  port.Narrator
	Logger    Logger
	Now       func() time.Time
}

type screeningServiceImpl struct {
	deps ScreeningDeps
}

// NewScreeningService creates a new ScreeningService
func NewScreeningService(deps ScreeningDeps) (ScreeningService, error) {
	if deps.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &screeningServiceImpl{deps: deps}, nil
}

// Screen evaluates the input, summarizes the batch, and then narrates,
// records, archives and notifies as configured. Only invalid input and
// cancellation fail the call; side-effect failures are logged and reported
// on the result.
func (s *screeningServiceImpl) Screen(ctx context.Context, input any, opts RunOptions) (*RunResult, error) {
	records, single, err := screening.Records(input)
	if err != nil {
		return nil, err
	}

	outcomes, err := s.deps.Processor.Screen(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("screen batch: %w", err)
	}

	summary := report.Summarize(outcomes, report.Options{
		CatalogVersion: s.deps.Processor.Evaluator().Catalog().Version(),
		Now:            s.deps.Now(),
		Flags:          s.deps.Processor.Flags,
	})

	result := &RunResult{
		Output:       screening.Output(outcomes, single),
		Outcomes:     outcomes,
		Summary:      summary,
		NotifyStatus: entity.NotifyStatusSkipped,
	}

	if opts.Narrate {
		result.Narrative = s.narrate(ctx, summary)
	}

	result.Recorded = s.record(ctx, summary, result.Narrative, opts.Source)
	result.Archived = s.archive(ctx, summary)

	if opts.Notify {
		result.NotifyStatus = s.notify(ctx, summary, result.Narrative, result.Recorded)
	}

	s.deps.Logger.Info("Screening run completed",
		"run_id", summary.RunID,
		"source", opts.Source,
		"records", summary.Records,
		"flagged", summary.Flagged,
		"recorded", result.Recorded,
		"archived", result.Archived,
		"notify_status", result.NotifyStatus,
	)
	return result, nil
}

func (s *screeningServiceImpl) narrate(ctx context.Context, summary *report.Summary) string {
	if s.deps.Narrator == nil {
		return ""
	}
	narrative, err := s.deps.Narrator.Narrate(ctx, digest(summary, ""))
	if err != nil {
		s.deps.Logger.Error("Failed to narrate run", "error", err, "run_id", summary.RunID)
		return ""
	}
	return narrative
}

func (s *screeningServiceImpl) record(ctx context.Context, summary *report.Summary, narrative, source string) bool {
	if s.deps.Runs == nil {
		return false
	}

	run := RunFromSummary(summary, source, narrative)
	create := func(ctx context.Context) error {
		return s.deps.Runs.Create(ctx, run)
	}

	var err error
	if s.deps.TxManager != nil {
		err = s.deps.TxManager.WithTransaction(ctx, create)
	} else {
		err = create(ctx)
	}
	if err != nil {
		s.deps.Logger.Error("Failed to record run", "error", err, "run_id", summary.RunID)
		return false
	}
	return true
}

func (s *screeningServiceImpl) archive(ctx context.Context, summary *report.Summary) bool {
	if s.deps.Archive == nil || s.deps.Renderer == nil {
		return false
	}

	content, err := s.deps.Renderer.SummaryBytes(summary)
	if err != nil {
		s.deps.Logger.Error("Failed to render report", "error", err, "run_id", summary.RunID)
		return false
	}
	if err := s.deps.Archive.Save(ctx, reportName(summary.RunID), content); err != nil {
		s.deps.Logger.Error("Failed to archive report", "error", err, "run_id", summary.RunID)
		return false
	}
	return true
}

func (s *screeningServiceImpl) notify(ctx context.Context, summary *report.Summary, narrative string, recorded bool) string {
	if s.deps.Notifier == nil {
		return entity.NotifyStatusSkipped
	}

	status := entity.NotifyStatusSent
	if err := s.deps.Notifier.NotifyRun(ctx, digest(summary, narrative)); err != nil {
		s.deps.Logger.Error("Failed to notify run", "error", err, "run_id", summary.RunID)
		status = entity.NotifyStatusFailed
	}

	if recorded {
		if err := s.deps.Runs.UpdateNotifyStatus(ctx, summary.RunID, status); err != nil {
			s.deps.Logger.Error("Failed to update notify status", "error", err, "run_id", summary.RunID)
		}
	}
	return status
}

// Catalog returns the policy catalog in effect
func (s *screeningServiceImpl) Catalog() *policy.Catalog {
	return s.deps.Processor.Evaluator().Catalog()
}

// GetRun returns a recorded run
func (s *screeningServiceImpl) GetRun(ctx context.Context, id string) (*entity.ScreeningRun, error) {
	if s.deps.Runs == nil {
		return nil, ErrLedgerDisabled
	}
	run, err := s.deps.Runs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first
func (s *screeningServiceImpl) ListRuns(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error) {
	if s.deps.Runs == nil {
		return nil, ErrLedgerDisabled
	}
	runs, err := s.deps.Runs.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ArchivedReport returns the workbook archived for a run
func (s *screeningServiceImpl) ArchivedReport(ctx context.Context, runID string) ([]byte, error) {
	if s.deps.Archive == nil {
		return nil, ErrArchiveDisabled
	}
	content, err := s.deps.Archive.Read(ctx, reportName(runID))
	if err != nil {
		return nil, fmt.Errorf("read archived report: %w", err)
	}
	return content, nil
}

// RunFromSummary converts a batch summary into its ledger entry
func RunFromSummary(summary *report.Summary, source, narrative string) *entity.ScreeningRun {
	findings := make([]entity.RunFinding, 0, len(summary.ByCheck))
	for _, c := range summary.ByCheck {
		findings = append(findings, entity.RunFinding{Check: string(c.Check), Count: c.Count})
	}

	return &entity.ScreeningRun{
		ID:             summary.RunID,
		Source:         source,
		CatalogVersion: summary.CatalogVersion,
		Records:        summary.Records,
		Accepted:       summary.Accepted,
		Flagged:        summary.Flagged,
		Duplicates:     summary.Duplicates,
		Unevaluated:    summary.Unevaluated,
		TotalAmount:    summary.TotalAmount,
		FlaggedAmount:  summary.FlaggedAmount,
		Findings:       findings,
		Narrative:      narrative,
		NotifyStatus:   entity.NotifyStatusSkipped,
		CreatedAt:      summary.GeneratedAt,
	}
}

func digest(summary *report.Summary, narrative string) port.RunDigest {
	return port.RunDigest{
		RunID:          summary.RunID,
		CatalogVersion: summary.CatalogVersion,
		Records:        summary.Records,
		Flagged:        summary.Flagged,
		Text:           summary.Text(),
		Narrative:      narrative,
	}
}

func reportName(runID string) string {
	return runID + ".xlsx"
}
