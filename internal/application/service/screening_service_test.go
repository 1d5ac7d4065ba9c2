package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/application/report"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/domain/entity"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
)

var fixedNow = time.Date(2024, 7, 20, 0, 0, 0, 0, time.UTC)

type mockLogger struct {
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errors = append(m.errors, msg)
}

type mockRunRepo struct {
	created      []*entity.ScreeningRun
	statuses     map[string]string
	createFunc   func(ctx context.Context, run *entity.ScreeningRun) error
	getByIDFunc  func(ctx context.Context, id string) (*entity.ScreeningRun, error)
	listFunc     func(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error)
	updateStatus func(ctx context.Context, id, status string) error
}

func (m *mockRunRepo) Create(ctx context.Context, run *entity.ScreeningRun) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, run)
	}
	m.created = append(m.created, run)
	return nil
}

func (m *mockRunRepo) GetByID(ctx context.Context, id string) (*entity.ScreeningRun, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, port.ErrNotFound
}

func (m *mockRunRepo) UpdateNotifyStatus(ctx context.Context, id, status string) error {
	if m.updateStatus != nil {
		return m.updateStatus(ctx, id, status)
	}
	if m.statuses == nil {
		m.statuses = make(map[string]string)
	}
	m.statuses[id] = status
	return nil
}

func (m *mockRunRepo) List(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return nil, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockArchive struct {
	saved   map[string][]byte
	saveErr error
}

func (m *mockArchive) Save(ctx context.Context, name string, content []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[name] = content
	return nil
}

func (m *mockArchive) Read(ctx context.Context, name string) ([]byte, error) {
	content, ok := m.saved[name]
	if !ok {
		return nil, port.ErrNotFound
	}
	return content, nil
}

func (m *mockArchive) Exists(ctx context.Context, name string) bool {
	_, ok := m.saved[name]
	return ok
}

type mockRenderer struct{}

func (mockRenderer) Bytes(s *report.Summary) ([]byte, error) {
	return []byte("xlsx:" + s.RunID), nil
}

func (mockRenderer) SummaryBytes(s *report.Summary) ([]byte, error) {
	return []byte("summary:" + s.RunID), nil
}

type mockNotifier struct {
	digests []port.RunDigest
	err     error
}

func (m *mockNotifier) NotifyRun(ctx context.Context, digest port.RunDigest) error {
	m.digests = append(m.digests, digest)
	return m.err
}

type mockNarrator struct {
	narrative string
	err       error
}

func (m *mockNarrator) Narrate(ctx context.Context, digest port.RunDigest) (string, error) {
	return m.narrative, m.err
}

func newTestProcessor(t *testing.T) *screening.Processor {
	t.Helper()
	catalog, err := policy.NewCatalog("test-1", policy.Table{
		policy.TierStaff: {
			policy.CategoryTravel: {
				policy.KindBusinessTrips: policy.Range(24000, 160000),
			},
		},
	}, nil)
	require.NoError(t, err)

	evaluator, err := rules.NewEvaluator(catalog, rules.Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return screening.NewProcessor(evaluator, screening.Config{}, zap.NewNop())
}

func record(invoice string, amount int) map[string]any {
	return map[string]any{
		"bill": map[string]any{
			"invoice_number": invoice,
			"totalAmount":    map[string]any{"$numberInt": fmt.Sprint(amount)},
			"date":           map[string]any{"$date": map[string]any{"$numberLong": fmt.Sprint(fixedNow.UnixMilli())}},
		},
		"vendor":        map[string]any{"name": "Acme"},
		"employeeLevel": "Staff & Employees",
	}
}

func batch() []any {
	return []any{record("INV-1", 50000), record("INV-2", 4000), record("INV-1", 50000)}
}

func TestNewScreeningService_RequiresDeps(t *testing.T) {
	_, err := NewScreeningService(ScreeningDeps{Logger: &mockLogger{}})
	assert.Error(t, err)

	_, err = NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t)})
	assert.Error(t, err)
}

func TestScreeningService_Screen_Minimal(t *testing.T) {
	svc, err := NewScreeningService(ScreeningDeps{
		Processor: newTestProcessor(t),
		Logger:    &mockLogger{},
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	result, err := svc.Screen(context.Background(), batch(), RunOptions{Source: entity.SourceAPI, Notify: true, Narrate: true})
	require.NoError(t, err)

	output := result.Output.([]any)
	require.Len(t, output, 3)
	assert.Equal(t, []string{"Accepted"}, output[0].(map[string]any)["flags"])
	assert.Equal(t, []string{rules.MsgDuplicate}, output[2].(map[string]any)["flags"])

	assert.Equal(t, 3, result.Summary.Records)
	assert.Equal(t, 2, result.Summary.Flagged)
	assert.Equal(t, "test-1", result.Summary.CatalogVersion)
	assert.Equal(t, entity.NotifyStatusSkipped, result.NotifyStatus)
	assert.Empty(t, result.Narrative)
	assert.False(t, result.Recorded)
	assert.False(t, result.Archived)
}

func TestScreeningService_Screen_SingleRecordShape(t *testing.T) {
	svc, err := NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t), Logger: &mockLogger{}})
	require.NoError(t, err)

	result, err := svc.Screen(context.Background(), record("INV-1", 50000), RunOptions{})
	require.NoError(t, err)

	annotated, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"Accepted"}, annotated["flags"])
}

func TestScreeningService_Screen_InvalidInput(t *testing.T) {
	runs := &mockRunRepo{}
	svc, err := NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t), Runs: runs, Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = svc.Screen(context.Background(), "not a record", RunOptions{})
	assert.ErrorIs(t, err, screening.ErrInvalidInputShape)
	assert.Empty(t, runs.created)
}

func TestScreeningService_Screen_AllCollaborators(t *testing.T) {
	runs := &mockRunRepo{}
	tx := &mockTxManager{}
	archive := &mockArchive{}
	notifier := &mockNotifier{}
	svc, err := NewScreeningService(ScreeningDeps{
		Processor: newTestProcessor(t),
		Runs:      runs,
		TxManager: tx,
		Archive:   archive,
		Renderer:  mockRenderer{},
		Notifier:  notifier,
		Narrator:  &mockNarrator{narrative: "One duplicate invoice."},
		Logger:    &mockLogger{},
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	result, err := svc.Screen(context.Background(), batch(), RunOptions{Source: entity.SourceCLI, Notify: true, Narrate: true})
	require.NoError(t, err)
	runID := result.Summary.RunID

	assert.Equal(t, "One duplicate invoice.", result.Narrative)
	assert.True(t, result.Recorded)
	assert.True(t, result.Archived)
	assert.Equal(t, entity.NotifyStatusSent, result.NotifyStatus)

	assert.Equal(t, 1, tx.calls)
	require.Len(t, runs.created, 1)
	run := runs.created[0]
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, entity.SourceCLI, run.Source)
	assert.Equal(t, "One duplicate invoice.", run.Narrative)
	assert.Equal(t, fixedNow, run.CreatedAt)
	assert.Equal(t, entity.NotifyStatusSent, runs.statuses[runID])

	assert.Equal(t, []byte("summary:"+runID), archive.saved[runID+".xlsx"], "archive keeps aggregates only")

	require.Len(t, notifier.digests, 1)
	assert.Equal(t, "One duplicate invoice.", notifier.digests[0].Narrative)
	assert.Equal(t, 2, notifier.digests[0].Flagged)
	assert.Contains(t, notifier.digests[0].Text, runID)

	content, err := svc.ArchivedReport(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, []byte("summary:"+runID), content)
}

func TestScreeningService_Screen_SideEffectFailuresDegrade(t *testing.T) {
	logger := &mockLogger{}
	runs := &mockRunRepo{createFunc: func(ctx context.Context, run *entity.ScreeningRun) error {
		return errors.New("disk full")
	}}
	notifier := &mockNotifier{err: errors.New("lark down")}
	svc, err := NewScreeningService(ScreeningDeps{
		Processor: newTestProcessor(t),
		Runs:      runs,
		Archive:   &mockArchive{saveErr: errors.New("read-only")},
		Renderer:  mockRenderer{},
		Notifier:  notifier,
		Narrator:  &mockNarrator{err: errors.New("rate limited")},
		Logger:    logger,
	})
	require.NoError(t, err)

	result, err := svc.Screen(context.Background(), batch(), RunOptions{Notify: true, Narrate: true})
	require.NoError(t, err)

	assert.Len(t, result.Output.([]any), 3)
	assert.Empty(t, result.Narrative)
	assert.False(t, result.Recorded)
	assert.False(t, result.Archived)
	assert.Equal(t, entity.NotifyStatusFailed, result.NotifyStatus)
	assert.Empty(t, runs.statuses, "status is not updated for unrecorded runs")
	assert.ElementsMatch(t, []string{
		"Failed to narrate run",
		"Failed to record run",
		"Failed to archive report",
		"Failed to notify run",
	}, logger.errors)
}

func TestScreeningService_Screen_OptionsOff(t *testing.T) {
	notifier := &mockNotifier{}
	svc, err := NewScreeningService(ScreeningDeps{
		Processor: newTestProcessor(t),
		Notifier:  notifier,
		Narrator:  &mockNarrator{narrative: "unused"},
		Logger:    &mockLogger{},
	})
	require.NoError(t, err)

	result, err := svc.Screen(context.Background(), batch(), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Narrative)
	assert.Empty(t, notifier.digests)
	assert.Equal(t, entity.NotifyStatusSkipped, result.NotifyStatus)
}

func TestScreeningService_Screen_Cancelled(t *testing.T) {
	runs := &mockRunRepo{}
	svc, err := NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t), Runs: runs, Logger: &mockLogger{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Screen(ctx, batch(), RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, runs.created)
}

func TestScreeningService_Runs(t *testing.T) {
	want := &entity.ScreeningRun{ID: "run-1"}
	runs := &mockRunRepo{
		getByIDFunc: func(ctx context.Context, id string) (*entity.ScreeningRun, error) {
			if id == "run-1" {
				return want, nil
			}
			return nil, port.ErrNotFound
		},
		listFunc: func(ctx context.Context, limit, offset int) ([]*entity.ScreeningRun, error) {
			assert.Equal(t, 5, limit)
			assert.Equal(t, 10, offset)
			return []*entity.ScreeningRun{want}, nil
		},
	}
	svc, err := NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t), Runs: runs, Logger: &mockLogger{}})
	require.NoError(t, err)

	got, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Same(t, want, got)

	_, err = svc.GetRun(context.Background(), "run-2")
	assert.ErrorIs(t, err, port.ErrNotFound)

	list, err := svc.ListRuns(context.Background(), 5, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestScreeningService_DisabledFeatures(t *testing.T) {
	svc, err := NewScreeningService(ScreeningDeps{Processor: newTestProcessor(t), Logger: &mockLogger{}})
	require.NoError(t, err)

	_, err = svc.GetRun(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrLedgerDisabled)
	_, err = svc.ListRuns(context.Background(), 10, 0)
	assert.ErrorIs(t, err, ErrLedgerDisabled)
	_, err = svc.ArchivedReport(context.Background(), "run-1")
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	assert.Equal(t, "test-1", svc.Catalog().Version())
}

func TestRunFromSummary(t *testing.T) {
	summary := report.Summarize([]screening.Outcome{
		{Index: 0, Tier: policy.TierStaff, Amount: 100, AmountValid: true},
		{Index: 1, Tier: policy.TierStaff, Amount: 50, AmountValid: true, Duplicate: true,
			Violations: []rules.Violation{{Check: rules.CheckDuplicate, Message: rules.MsgDuplicate}}},
	}, report.Options{CatalogVersion: "v", Now: fixedNow})

	run := RunFromSummary(summary, entity.SourceAPI, "")
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, 2, run.Records)
	assert.Equal(t, 1, run.Flagged)
	assert.Equal(t, 1, run.Duplicates)
	assert.Equal(t, "150", run.TotalAmount.String())
	assert.Equal(t, []entity.RunFinding{{Check: string(rules.CheckDuplicate), Count: 1}}, run.Findings)
	assert.Equal(t, entity.NotifyStatusSkipped, run.NotifyStatus)
}
