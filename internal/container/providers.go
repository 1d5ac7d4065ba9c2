// Package container wires the screening service from configuration and
// manages the lifecycle of everything it opens.
package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/config"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/domain/rules"
	"github.com/garyjia/expense-screening/internal/infrastructure/catalog"
	infraLark "github.com/garyjia/expense-screening/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-screening/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-screening/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-screening/internal/infrastructure/storage"
	"github.com/garyjia/expense-screening/pkg/database"
)

// DatabaseBundle holds the run ledger components
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
	Runs           port.RunRepository
}

// ProvideCatalog loads the configured policy catalog, or the built-in one
func ProvideCatalog(cfg *config.CatalogConfig, logger *zap.Logger) (*policy.Catalog, error) {
	loader, err := catalog.NewLoader(logger)
	if err != nil {
		return nil, err
	}
	c, err := loader.Load(cfg.Path, catalog.Format(cfg.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to load policy catalog: %w", err)
	}
	return c, nil
}

// ProvideProcessor builds the rule evaluator and batch processor
func ProvideProcessor(c *policy.Catalog, cfg *config.ScreeningConfig, logger *zap.Logger) (*screening.Processor, error) {
	evaluator, err := rules.NewEvaluator(c, rules.Options{
		StalenessDays: cfg.StalenessDays,
		AmountBasis:   rules.AmountBasis(cfg.AmountBasis),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	return screening.NewProcessor(evaluator, screening.Config{
		FlagField:      cfg.FlagField,
		AcceptedMarker: cfg.AcceptedMarker,
		Workers:        cfg.Workers,
	}, logger), nil
}

// ProvideDatabase opens the ledger database and applies the embedded
// migrations. It returns nil when the ledger is disabled.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Runs:           repository.NewRunRepository(db.DB, logger),
	}, nil
}

// ProvideArchive returns the report archive, or nil when no directory is set
func ProvideArchive(cfg *config.ReportsConfig, logger *zap.Logger) port.ReportArchive {
	if cfg.ArchiveDir == "" {
		return nil
	}
	return storage.NewLocalReportArchive(cfg.ArchiveDir, logger)
}

// ProvideNotifier returns the Lark notifier, or nil when Lark is disabled
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}, logger)

	notifier, err := infraLark.NewNotifier(infraLark.NewMessenger(sdkClient, logger), infraLark.NotifierConfig{
		ReceiveIDType: cfg.ReceiveIDType,
		ReceiveID:     cfg.ReceiveID,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark notifier: %w", err)
	}
	return notifier, nil
}

// ProvideNarrator returns the OpenAI narrator, or nil when OpenAI is disabled
func ProvideNarrator(cfg *config.OpenAIConfig, logger *zap.Logger) (port.Narrator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	narrator, err := openai.NewNarrator(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		PromptsPath: cfg.PromptsPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create narrator: %w", err)
	}
	return narrator, nil
}
