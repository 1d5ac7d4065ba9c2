package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/domain/entity"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-screening/pkg/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background(), migrations.FS))
	return db
}

func sampleRun(id string, createdAt time.Time) *entity.ScreeningRun {
	return &entity.ScreeningRun{
		ID:             id,
		Source:         entity.SourceAPI,
		CatalogVersion: "2024.1",
		Records:        3,
		Accepted:       1,
		Flagged:        2,
		Duplicates:     1,
		TotalAmount:    decimal.NewFromInt(508010),
		FlaggedAmount:  decimal.NewFromInt(8010),
		Findings: []entity.RunFinding{
			{Check: "DUPLICATE", Count: 1},
			{Check: "BUSINESS_TRIPS", Count: 2},
		},
		CreatedAt: createdAt,
	}
}

func TestRunRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	created := time.Date(2024, 7, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, sampleRun("run-1", created)))

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "2024.1", got.CatalogVersion)
	assert.Equal(t, 3, got.Records)
	assert.Equal(t, 2, got.Flagged)
	assert.True(t, decimal.NewFromInt(508010).Equal(got.TotalAmount))
	assert.True(t, decimal.NewFromInt(8010).Equal(got.FlaggedAmount))
	assert.Equal(t, entity.NotifyStatusSkipped, got.NotifyStatus)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, []entity.RunFinding{
		{Check: "BUSINESS_TRIPS", Count: 2},
		{Check: "DUPLICATE", Count: 1},
	}, got.Findings)
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	repo := NewRunRepository(setupTestDB(t).DB, zap.NewNop())

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, port.ErrNotFound)

	err = repo.UpdateNotifyStatus(context.Background(), "missing", entity.NotifyStatusSent)
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRunRepository_UpdateNotifyStatus(t *testing.T) {
	repo := NewRunRepository(setupTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, sampleRun("run-1", time.Now())))
	require.NoError(t, repo.UpdateNotifyStatus(ctx, "run-1", entity.NotifyStatusFailed))

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, entity.NotifyStatusFailed, got.NotifyStatus)
}

func TestRunRepository_List(t *testing.T) {
	repo := NewRunRepository(setupTestDB(t).DB, zap.NewNop())
	ctx := context.Background()

	base := time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	runs, err = repo.List(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
}

func TestRunRepository_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db.DB, zap.NewNop())
	tm := sqlite.NewDB(db.DB, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("notifier exploded")
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, sampleRun("run-tx", time.Now())); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, "run-tx")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRunRepository_DuplicateFindingRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db.DB, zap.NewNop())
	tm := sqlite.NewDB(db.DB, zap.NewNop())
	ctx := context.Background()

	run := sampleRun("run-dup", time.Now())
	run.Findings = append(run.Findings, entity.RunFinding{Check: "DUPLICATE", Count: 5})

	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		return repo.Create(ctx, run)
	})
	require.Error(t, err)

	_, err = repo.GetByID(ctx, "run-dup")
	assert.ErrorIs(t, err, port.ErrNotFound)
}
