package domain

import "time"

// PipelineConfig is the immutable description of one run.
type PipelineConfig struct {
	Source         string     `json:"source"`
	TipIDs         []string   `json:"tipIds,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Categories     []Category `json:"categories,omitempty"`
	Enhance        bool       `json:"enhance"`
	Outputs        OutputSet  `json:"outputs"`
	BatchSize      int        `json:"batchSize"`
	OutputDir      string     `json:"outputDir"`
	Webhook        bool       `json:"webhook"`
	GenerateReport bool       `json:"generateReport"`
}

// Filter derives the source filter for this run.
func (c PipelineConfig) Filter() TipFilter {
	return TipFilter{
		IDs:        c.TipIDs,
		Limit:      c.Limit,
		Categories: c.Categories,
	}
}

// RunStatus is the overall outcome of a run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// ErrorStage values that are not output kinds.
const (
	StagePipeline  = "pipeline"
	StageCancelled = "cancelled"
)

// RunError is one failed (tip, stage) pair.
type RunError struct {
	TipID    string `json:"tipId,omitempty"`
	TipTitle string `json:"tipTitle,omitempty"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// Costs summarizes enhancement token spend.
type Costs struct {
	Tokens        int     `json:"tokens"`
	EstimatedCost float64 `json:"estimatedCost"`
}

// BatchTiming is the executor's best-effort breakdown; stages interleave per batch.
type BatchTiming struct {
	Fetching   time.Duration `json:"fetching"`
	Enhancing  time.Duration `json:"enhancing"`
	Generating time.Duration `json:"generating"`
	Total      time.Duration `json:"total"`
}

// BatchResult is what the executor returns for one ProcessBatch call.
type BatchResult struct {
	Processed int                     `json:"processed"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Enhanced  int                     `json:"enhanced"`
	Outputs   map[OutputKind][]string `json:"outputs"`
	Errors    []RunError              `json:"errors"`
	Timing    BatchTiming             `json:"timing"`
	Costs     *Costs                  `json:"costs,omitempty"`
}

// Summary carries the headline counters of a run.
type Summary struct {
	TotalTips     int `json:"totalTips"`
	ProcessedTips int `json:"processedTips"`
	EnhancedTips  int `json:"enhancedTips"`
	SuccessCount  int `json:"successCount"`
	FailedCount   int `json:"failedCount"`
}

// RunTiming records wall-clock bounds and per-phase durations of a run.
type RunTiming struct {
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	Fetching    time.Duration `json:"fetching"`
	Enhancement time.Duration `json:"enhancement"`
	Generation  time.Duration `json:"generation"`
	Report      time.Duration `json:"report"`
	Total       time.Duration `json:"total"`
}

// PipelineResult is the frozen outcome of one run.
type PipelineResult struct {
	RunID      string                  `json:"runId"`
	Status     RunStatus               `json:"status"`
	Config     PipelineConfig          `json:"config"`
	Summary    Summary                 `json:"summary"`
	Outputs    map[OutputKind][]string `json:"outputs"`
	Errors     []RunError              `json:"errors"`
	Timing     RunTiming               `json:"timing"`
	Costs      *Costs                  `json:"costs,omitempty"`
	ReportPath string                  `json:"reportPath,omitempty"`
}

// Estimate is the dry-run projection for a config.
type Estimate struct {
	RecordCount      int                `json:"recordCount"`
	EstimatedTime    time.Duration      `json:"estimatedTime"`
	EstimatedCost    float64            `json:"estimatedCost"`
	EstimatedOutputs map[OutputKind]int `json:"estimatedOutputs"`
}

// Validation lists every problem found in a config.
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}
