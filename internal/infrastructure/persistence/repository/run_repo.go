package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/domain/entity"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/sqlite"
)

// RunRepository implements port.RunRepository
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a run and its findings. Runs without a timestamp get the
// current time.
func (r *RunRepository) Create(ctx context.Context, run *entity.ScreeningRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.NotifyStatus == "" {
		run.NotifyStatus = entity.NotifyStatusSkipped
	}

	exec := r.getExecutor(ctx)
	query := `
		INSERT INTO screening_runs (
			id, source, catalog_version, records, accepted, flagged,
			duplicates, unevaluated, total_amount, flagged_amount,
			narrative, notify_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec.ExecContext(ctx, query,
		run.ID,
		run.Source,
		run.CatalogVersion,
		run.Records,
		run.Accepted,
		run.Flagged,
		run.Duplicates,
		run.Unevaluated,
		run.TotalAmount.String(),
		run.FlaggedAmount.String(),
		run.Narrative,
		run.NotifyStatus,
		run.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create screening run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create screening run: %w", err)
	}

	for _, finding := range run.Findings {
		_, err := exec.ExecContext(ctx,
			`INSERT INTO run_findings (run_id, check_name, count) VALUES (?, ?, ?)`,
			run.ID, finding.Check, finding.Count,
		)
		if err != nil {
			r.logger.Error("Failed to create run finding",
				zap.String("run_id", run.ID),
				zap.String("check", finding.Check),
				zap.Error(err))
			return fmt.Errorf("failed to create run finding: %w", err)
		}
	}

	r.logger.Debug("Screening run stored", zap.String("run_id", run.ID), zap.Int("records", run.Records))
	return nil
}

// GetByID retrieves a run with its findings
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.ScreeningRun, error) {
	query := `
		SELECT id, source, catalog_version, records, accepted, flagged,
			duplicates, unevaluated, total_amount, flagged_amount,
			narrative, notify_status, created_at
		FROM screening_runs
		WHERE id = ?
	`
	run, err := scanRun(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("screening run %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get screening run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get screening run: %w", err)
	}

	if run.Findings, err = r.findings(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateNotifyStatus records the outcome of delivering a run digest
func (r *RunRepository) UpdateNotifyStatus(ctx context.Context, id, status string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE screening_runs SET notify_status = ? WHERE id = ?`, status, id)
	if err != nil {
		r.logger.Error("Failed to update notify status", zap.String("run_id", id), zap.Error(err))
		return fmt.Errorf("failed to update notify status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("screening run %s: %w", id, port.ErrNotFound)
	}
	return nil
}

// List returns runs newest first. Findings are not loaded.
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, source, catalog_version, records, accepted, flagged,
			duplicates, unevaluated, total_amount, flagged_amount,
			narrative, notify_status, created_at
		FROM screening_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list screening runs", zap.Error(err))
		return nil, fmt.Errorf("failed to list screening runs: %w", err)
	}
	defer rows.Close()

	var runs []*entity.ScreeningRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan screening run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) findings(ctx context.Context, id string) ([]entity.RunFinding, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT check_name, count FROM run_findings WHERE run_id = ? ORDER BY count DESC, check_name ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run findings: %w", err)
	}
	defer rows.Close()

	var findings []entity.RunFinding
	for rows.Next() {
		var f entity.RunFinding
		if err := rows.Scan(&f.Check, &f.Count); err != nil {
			return nil, fmt.Errorf("failed to scan run finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*entity.ScreeningRun, error) {
	var (
		run           entity.ScreeningRun
		totalAmount   string
		flaggedAmount string
	)
	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.CatalogVersion,
		&run.Records,
		&run.Accepted,
		&run.Flagged,
		&run.Duplicates,
		&run.Unevaluated,
		&totalAmount,
		&flaggedAmount,
		&run.Narrative,
		&run.NotifyStatus,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if run.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total amount %q: %w", totalAmount, err)
	}
	if run.FlaggedAmount, err = decimal.NewFromString(flaggedAmount); err != nil {
		return nil, fmt.Errorf("invalid flagged amount %q: %w", flaggedAmount, err)
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

func (r *RunRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ port.RunRepository = (*RunRepository)(nil)
