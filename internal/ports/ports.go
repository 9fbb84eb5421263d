package ports

import (
	"context"
	"time"

	"TipsPipeline/internal/domain"
)

// TipSource pulls tips from the content store.
type TipSource interface {
	FetchTips(ctx context.Context, filter domain.TipFilter) ([]domain.Tip, error)
	CountTips(ctx context.Context, filter domain.TipFilter) (int, error)
}

// Enhancer enriches a tip through a generative-text API and reports token usage.
type Enhancer interface {
	Enhance(ctx context.Context, tip domain.Tip) (domain.EnhancedContent, error)
}

// Producer renders one output kind and returns the artifact path or URL.
type Producer interface {
	Kind() domain.OutputKind
	Produce(ctx context.Context, job domain.ProductionJob) (string, error)
}

// Notifier pushes run summaries to Telegram or other channels.
type Notifier interface {
	PublishSummary(ctx context.Context, message string) error
}

// RunStore keeps a history of finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, result domain.PipelineResult) error
}

// Scheduler controls when recurring runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
