package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"TipsPipeline/internal/batch"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
	"TipsPipeline/internal/progress"
	"TipsPipeline/internal/source"
)

const (
	minBatchSize = 1
	maxBatchSize = 100
)

// Settings holds run defaults and estimation constants.
type Settings struct {
	DefaultSource       string
	DefaultOutputDir    string
	DefaultBatchSize    int
	PerItemTime         time.Duration
	PerItemTimeEnhanced time.Duration
	AvgTokensPerTip     int
	CostPer1KTokens     float64
	ReportErrorLimit    int
	ReportArtifactLimit int
}

// DefaultSettings returns the constants used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		DefaultSource:       "database",
		DefaultOutputDir:    "./output",
		DefaultBatchSize:    batch.DefaultBatchSize,
		PerItemTime:         2 * time.Second,
		PerItemTimeEnhanced: 5 * time.Second,
		AvgTokensPerTip:     1500,
		CostPer1KTokens:     0.002,
		ReportErrorLimit:    10,
		ReportArtifactLimit: 5,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.DefaultSource == "" {
		s.DefaultSource = def.DefaultSource
	}
	if s.DefaultOutputDir == "" {
		s.DefaultOutputDir = def.DefaultOutputDir
	}
	if s.DefaultBatchSize <= 0 {
		s.DefaultBatchSize = def.DefaultBatchSize
	}
	if s.PerItemTime <= 0 {
		s.PerItemTime = def.PerItemTime
	}
	if s.PerItemTimeEnhanced <= 0 {
		s.PerItemTimeEnhanced = def.PerItemTimeEnhanced
	}
	if s.AvgTokensPerTip <= 0 {
		s.AvgTokensPerTip = def.AvgTokensPerTip
	}
	if s.CostPer1KTokens <= 0 {
		s.CostPer1KTokens = def.CostPer1KTokens
	}
	if s.ReportErrorLimit <= 0 {
		s.ReportErrorLimit = def.ReportErrorLimit
	}
	if s.ReportArtifactLimit <= 0 {
		s.ReportArtifactLimit = def.ReportArtifactLimit
	}
	return s
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources  *source.Registry
	Executor *batch.Executor
	Notifier ports.Notifier
	Runs     ports.RunStore
	Logger   *slog.Logger
	Settings Settings
}

// Pipeline validates, estimates, executes and reports on content runs.
type Pipeline struct {
	sources  *source.Registry
	executor *batch.Executor
	notifier ports.Notifier
	runs     ports.RunStore
	logger   *slog.Logger
	settings Settings
	now      func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	sources := deps.Sources
	if sources == nil {
		sources = source.NewRegistry()
	}
	executor := deps.Executor
	if executor == nil {
		executor = batch.NewExecutor(batch.Deps{Logger: deps.Logger})
	}
	return &Pipeline{
		sources:  sources,
		executor: executor,
		notifier: deps.Notifier,
		runs:     deps.Runs,
		logger:   deps.Logger,
		settings: deps.Settings.withDefaults(),
		now:      time.Now,
	}
}

// Subscribe registers a handler for live progress of any run.
func (p *Pipeline) Subscribe(h progress.Handler) func() {
	return p.executor.Subscribe(h)
}

// CurrentProgress returns the executor's latest progress snapshot.
func (p *Pipeline) CurrentProgress() domain.ProgressEvent {
	return p.executor.CurrentProgress()
}

// ValidateConfig collects every problem with cfg instead of stopping at the first.
func (p *Pipeline) ValidateConfig(cfg domain.PipelineConfig) domain.Validation {
	problems := []string{}

	if src := p.sourceName(cfg); !p.sources.Has(src) {
		problems = append(problems, fmt.Sprintf("Unknown source: %s", src))
	}
	if len(cfg.Outputs.Kinds()) == 0 {
		problems = append(problems, "At least one output format must be enabled")
	}
	if cfg.BatchSize < minBatchSize || cfg.BatchSize > maxBatchSize {
		problems = append(problems, fmt.Sprintf("Batch size must be between %d and %d", minBatchSize, maxBatchSize))
	}
	if cfg.OutputDir == "" {
		problems = append(problems, "Output directory is required")
	}

	return domain.Validation{Valid: len(problems) == 0, Errors: problems}
}

// EstimatePipeline projects time, cost and outputs without enhancing or producing anything.
func (p *Pipeline) EstimatePipeline(ctx context.Context, cfg domain.PipelineConfig) (domain.Estimate, error) {
	count, err := p.recordCount(ctx, cfg)
	if err != nil {
		return domain.Estimate{}, err
	}

	kinds := cfg.Outputs.Kinds()
	perItem := p.settings.PerItemTime
	if cfg.Enhance {
		perItem = p.settings.PerItemTimeEnhanced
	}

	est := domain.Estimate{
		RecordCount:      count,
		EstimatedTime:    time.Duration(count*len(kinds)) * perItem,
		EstimatedOutputs: make(map[domain.OutputKind]int, len(domain.OrderedKinds)),
	}
	for _, kind := range domain.OrderedKinds {
		est.EstimatedOutputs[kind] = 0
		if cfg.Outputs.Enabled(kind) {
			est.EstimatedOutputs[kind] = count
		}
	}
	if cfg.Enhance {
		est.EstimatedCost = float64(count*p.settings.AvgTokensPerTip) / 1000 * p.settings.CostPer1KTokens
	}

	return est, nil
}

func (p *Pipeline) recordCount(ctx context.Context, cfg domain.PipelineConfig) (int, error) {
	if len(cfg.TipIDs) > 0 {
		return len(cfg.TipIDs), nil
	}
	if cfg.Limit > 0 {
		return cfg.Limit, nil
	}

	src, err := p.sources.Resolve(p.sourceName(cfg))
	if err != nil {
		return 0, err
	}
	count, err := src.CountTips(ctx, cfg.Filter())
	if err != nil {
		return 0, fmt.Errorf("count tips: %w", err)
	}
	return count, nil
}

// ExecutePipeline runs fetching, batch processing and reporting for cfg.
// Invalid configs, empty sources and busy executors are returned as errors;
// every other failure is reported inside a failed result.
func (p *Pipeline) ExecutePipeline(ctx context.Context, cfg domain.PipelineConfig) (domain.PipelineResult, error) {
	if v := p.ValidateConfig(cfg); !v.Valid {
		return domain.PipelineResult{}, &domain.ConfigValidationError{Problems: v.Errors}
	}
	cfg.Source = p.sourceName(cfg)

	result := domain.PipelineResult{
		RunID:   uuid.NewString(),
		Config:  cfg,
		Outputs: map[domain.OutputKind][]string{},
		Errors:  []domain.RunError{},
	}
	result.Timing.StartedAt = p.now()
	logger := p.runLogger(result.RunID)
	logger.Info("pipeline started", "source", cfg.Source, "enhance", cfg.Enhance, "outputs", cfg.Outputs.Kinds())

	if err := p.runPhases(ctx, cfg, &result); err != nil {
		if errors.Is(err, domain.ErrNoRecords) || errors.Is(err, domain.ErrAlreadyRunning) {
			logger.Warn("pipeline aborted", "error", err)
			return domain.PipelineResult{}, err
		}
		logger.Error("pipeline failed", "error", err)
		result.Errors = append(result.Errors, domain.RunError{
			Stage:   domain.StagePipeline,
			Message: err.Error(),
		})
	}
	result.Status = deriveStatus(result.Summary, result.Errors)

	if cfg.GenerateReport {
		reportStart := p.now()
		result.Timing.Total = reportStart.Sub(result.Timing.StartedAt)
		path, err := writeReport(cfg.OutputDir, result, p.settings.ReportErrorLimit, p.settings.ReportArtifactLimit)
		if err != nil {
			logger.Warn("report not written", "error", err)
		} else {
			result.ReportPath = path
		}
		result.Timing.Report = p.now().Sub(reportStart)
	}

	result.Timing.FinishedAt = p.now()
	result.Timing.Total = result.Timing.FinishedAt.Sub(result.Timing.StartedAt)

	if cfg.Webhook && p.notifier != nil {
		if err := p.notifier.PublishSummary(ctx, buildSummaryMessage(result)); err != nil {
			logger.Warn("webhook notification failed", "error", err)
		}
	}
	if p.runs != nil {
		if err := p.runs.SaveRun(ctx, result); err != nil {
			logger.Warn("run history not saved", "error", err)
		}
	}

	logger.Info("pipeline finished",
		"status", result.Status,
		"succeeded", result.Summary.SuccessCount,
		"failed", result.Summary.FailedCount,
		"duration", result.Timing.Total,
	)
	return result, nil
}

// runPhases fetches tips and hands them to the executor, filling result in place.
func (p *Pipeline) runPhases(ctx context.Context, cfg domain.PipelineConfig, result *domain.PipelineResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()

	fetchStart := p.now()
	src, err := p.sources.Resolve(cfg.Source)
	if err != nil {
		return err
	}
	tips, err := src.FetchTips(ctx, cfg.Filter())
	result.Timing.Fetching = p.now().Sub(fetchStart)
	if err != nil {
		return fmt.Errorf("fetch tips: %w", err)
	}
	if len(tips) == 0 {
		return domain.ErrNoRecords
	}
	result.Summary.TotalTips = len(tips)

	res, err := p.executor.ProcessBatch(ctx, tips, batch.Config{
		Kinds:     cfg.Outputs.Kinds(),
		Enhance:   cfg.Enhance,
		BatchSize: cfg.BatchSize,
		OutputDir: cfg.OutputDir,
		Options:   cfg.Outputs,
	})
	if err != nil {
		return err
	}

	result.Summary.ProcessedTips = res.Processed
	result.Summary.SuccessCount = res.Succeeded
	result.Summary.FailedCount = res.Failed
	result.Summary.EnhancedTips = res.Enhanced
	result.Outputs = res.Outputs
	result.Errors = append(result.Errors, res.Errors...)
	result.Costs = res.Costs
	result.Timing.Fetching += res.Timing.Fetching
	result.Timing.Enhancement = res.Timing.Enhancing
	result.Timing.Generation = res.Timing.Generating
	return nil
}

// QuickGenerate runs a preset over the first count tips of the default source.
func (p *Pipeline) QuickGenerate(ctx context.Context, preset Preset, count int) (domain.PipelineResult, error) {
	outputs, err := preset.Outputs()
	if err != nil {
		return domain.PipelineResult{}, err
	}

	return p.ExecutePipeline(ctx, domain.PipelineConfig{
		Source:         p.settings.DefaultSource,
		Limit:          count,
		Enhance:        true,
		Outputs:        outputs,
		BatchSize:      p.settings.DefaultBatchSize,
		OutputDir:      p.settings.DefaultOutputDir,
		GenerateReport: true,
	})
}

func (p *Pipeline) sourceName(cfg domain.PipelineConfig) string {
	if cfg.Source == "" {
		return p.settings.DefaultSource
	}
	return cfg.Source
}

func (p *Pipeline) runLogger(runID string) *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.logger.With("run_id", runID)
}

func deriveStatus(s domain.Summary, errs []domain.RunError) domain.RunStatus {
	switch {
	case s.SuccessCount == 0:
		return domain.RunFailed
	case s.FailedCount > 0 || len(errs) > 0:
		return domain.RunPartial
	default:
		return domain.RunSuccess
	}
}
