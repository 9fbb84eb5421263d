package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"TipsPipeline/internal/batch"
	"TipsPipeline/internal/config"
	"TipsPipeline/internal/infrastructure/design"
	"TipsPipeline/internal/infrastructure/llm"
	"TipsPipeline/internal/infrastructure/parser"
	"TipsPipeline/internal/infrastructure/pdf"
	"TipsPipeline/internal/infrastructure/scheduler"
	"TipsPipeline/internal/infrastructure/storage"
	"TipsPipeline/internal/infrastructure/telegram"
	"TipsPipeline/internal/infrastructure/webpage"
	"TipsPipeline/internal/logging"
	"TipsPipeline/internal/ports"
	"TipsPipeline/internal/source"
	"TipsPipeline/internal/usecase"
)

// Source names accepted in PipelineConfig.Source.
const (
	SourceDatabase = "database"
	SourceSite     = "site"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	db        *sql.DB
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	tips      *storage.TipRepository
	runs      *storage.RunRepository
	scheduler *usecase.Scheduler
}

// New opens the content store and builds every adapter from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	placeholder := storage.Placeholder(cfg.Database.Driver)
	tips := storage.NewTipRepository(db, placeholder)
	runs := storage.NewRunRepository(db, placeholder)

	sources := source.NewRegistry()
	sources.Register(SourceDatabase, tips)
	if cfg.Site.ListingURL != "" {
		sources.Register(SourceSite, parser.NewSiteSource(cfg.Site.ListingURL, nil, baseLogger.With("component", "source.site")))
	}

	producers := []ports.Producer{pdf.NewProducer(), webpage.NewProducer()}
	if cfg.Design.APIKey != "" {
		producers = append(producers, design.NewClient(cfg.Design))
	} else {
		baseLogger.Warn("design export disabled: no api key configured")
	}

	var enhancer ports.Enhancer
	if cfg.ChatGPT.APIKey != "" {
		enhancer = llm.NewEnhancer(cfg.ChatGPT)
	} else {
		baseLogger.Warn("enhancement disabled: no chatgpt api key configured")
	}

	executor := batch.NewExecutor(batch.Deps{
		Enhancer:        enhancer,
		Producers:       producers,
		Pacer:           batch.NewPacer(cfg.Pipeline.CallInterval, cfg.Pipeline.BatchInterval),
		CostPer1KTokens: cfg.Pipeline.CostPer1KTokens,
		Logger:          baseLogger.With("component", "batch"),
	})

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:  sources,
		Executor: executor,
		Notifier: notifier,
		Runs:     runs,
		Logger:   baseLogger.With("component", "pipeline"),
		Settings: settingsFromConfig(cfg.Pipeline),
	})

	application := &Application{
		cfg:      cfg,
		db:       db,
		logger:   baseLogger,
		pipeline: pipeline,
		tips:     tips,
		runs:     runs,
	}

	if cfg.Scheduler.Enabled {
		preset, err := usecase.ParsePreset(cfg.Scheduler.Preset)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("scheduler: %w", err)
		}
		application.scheduler = usecase.NewScheduler(
			scheduler.NewTicker(cfg.Scheduler.Interval),
			pipeline,
			preset,
			cfg.Scheduler.Count,
			baseLogger.With("component", "scheduler"),
		)
	}

	return application, nil
}

// Pipeline exposes the orchestration use case to drivers (CLI, HTTP).
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Tips exposes the content store for imports.
func (a *Application) Tips() *storage.TipRepository { return a.tips }

// Runs exposes run history.
func (a *Application) Runs() *storage.RunRepository { return a.runs }

// Config returns the configuration the application was built from.
func (a *Application) Config() config.Config { return a.cfg }

// StartScheduler begins recurring quick runs when enabled.
func (a *Application) StartScheduler(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	a.logger.Info("scheduler enabled", "interval", a.cfg.Scheduler.Interval, "preset", a.cfg.Scheduler.Preset)
	return a.scheduler.Start(ctx)
}

// Close stops the scheduler and releases the database.
func (a *Application) Close(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop failed", "error", err)
		}
	}
	return a.db.Close()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func settingsFromConfig(cfg config.PipelineConfig) usecase.Settings {
	return usecase.Settings{
		DefaultSource:       cfg.DefaultSource,
		DefaultOutputDir:    cfg.OutputDir,
		DefaultBatchSize:    cfg.BatchSize,
		PerItemTime:         cfg.PerItemTime,
		PerItemTimeEnhanced: cfg.PerItemTimeEnhanced,
		AvgTokensPerTip:     cfg.AvgTokensPerTip,
		CostPer1KTokens:     cfg.CostPer1KTokens,
	}
}
