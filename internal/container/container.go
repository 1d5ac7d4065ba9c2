package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/expense-screening/internal/application/port"
	"github.com/garyjia/expense-screening/internal/application/screening"
	"github.com/garyjia/expense-screening/internal/application/service"
	"github.com/garyjia/expense-screening/internal/config"
	"github.com/garyjia/expense-screening/internal/domain/policy"
	"github.com/garyjia/expense-screening/internal/infrastructure/export"
)

// Container owns every component built from configuration. Components are
// initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Domain
	catalog   *policy.Catalog
	processor *screening.Processor

	// Infrastructure
	database *DatabaseBundle
	archive  port.ReportArchive
	notifier port.Notifier
	narrator port.Narrator
	xlsx     *export.XLSXWriter

	// Application
	screening service.ScreeningService

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Enabled bool   `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// New creates a container from configuration. Call Start to initialize it.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Policy catalog and rule engine
// 2. Run ledger database
// 3. Report archive and XLSX writer
// 4. External clients (Lark, OpenAI)
// 5. Application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.logger.Info("Rule engine initialized", zap.String("catalog_version", c.catalog.Version()))

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	c.initStorage()

	if err := c.initExternalClients(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully",
		zap.Bool("ledger", c.database != nil),
		zap.Bool("archive", c.archive != nil),
		zap.Bool("notifier", c.notifier != nil),
		zap.Bool("narrator", c.narrator != nil))
	return nil
}

// Close shuts down components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	err := c.closeDatabase()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeDatabase() error {
	if c.database == nil {
		return nil
	}
	err := c.database.DB.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.database = nil
	return err
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of every component. Disabled optional
// components are healthy.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.catalog != nil {
		status.Components["catalog"] = ComponentHealth{Healthy: true, Enabled: true, Message: "version " + c.catalog.Version()}
	} else {
		status.Components["catalog"] = ComponentHealth{Message: "not initialized"}
		status.Overall = false
	}

	switch {
	case !c.config.Database.Enabled:
		status.Components["database"] = ComponentHealth{Healthy: true}
	case c.database == nil:
		status.Components["database"] = ComponentHealth{Enabled: true, Message: "not initialized"}
		status.Overall = false
	default:
		if err := c.database.DB.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{Enabled: true, Message: fmt.Sprintf("ping failed: %v", err)}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true, Enabled: true}
		}
	}

	status.Components["archive"] = ComponentHealth{Healthy: true, Enabled: c.archive != nil}
	status.Components["lark"] = ComponentHealth{Healthy: true, Enabled: c.notifier != nil}
	status.Components["openai"] = ComponentHealth{Healthy: true, Enabled: c.narrator != nil}

	return status
}

func (c *Container) initEngine() error {
	catalog, err := ProvideCatalog(&c.config.Catalog, c.logger)
	if err != nil {
		return err
	}
	processor, err := ProvideProcessor(catalog, &c.config.Screening, c.logger)
	if err != nil {
		return err
	}
	c.catalog = catalog
	c.processor = processor
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle
	return nil
}

func (c *Container) initStorage() {
	c.xlsx = export.NewXLSXWriter(c.logger)
	c.archive = ProvideArchive(&c.config.Reports, c.logger)
}

func (c *Container) initExternalClients() error {
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	narrator, err := ProvideNarrator(&c.config.OpenAI, c.logger)
	if err != nil {
		return err
	}
	c.notifier = notifier
	c.narrator = narrator
	return nil
}

func (c *Container) initServices() error {
	deps := service.ScreeningDeps{
		Processor: c.processor,
		Archive:   c.archive,
		Renderer:  c.xlsx,
		Notifier:  c.notifier,
		Narrator:  c.narrator,
		Logger:    &zapLoggerAdapter{logger: c.logger},
	}
	if c.database != nil {
		deps.Runs = c.database.Runs
		deps.TxManager = c.database.TransactionMgr
	}

	svc, err := service.NewScreeningService(deps)
	if err != nil {
		return err
	}
	c.screening = svc
	return nil
}

// ScreeningService returns the screening service
func (c *Container) ScreeningService() service.ScreeningService {
	return c.screening
}

// Processor returns the batch processor
func (c *Container) Processor() *screening.Processor {
	return c.processor
}

// Catalog returns the policy catalog in effect
func (c *Container) Catalog() *policy.Catalog {
	return c.catalog
}

// XLSXWriter returns the report workbook writer
func (c *Container) XLSXWriter() *export.XLSXWriter {
	return c.xlsx
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the container's logger in key/value form
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// Config returns the container's configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
