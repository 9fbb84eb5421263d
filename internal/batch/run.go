package batch

import (
	"time"

	"TipsPipeline/internal/domain"
)

// runState accumulates the outcome of a single ProcessBatch call. A fresh
// value is created per call and only the executor goroutine touches it.
type runState struct {
	total     int
	enhance   bool
	processed int
	succeeded int
	failed    int
	enhanced  int
	tokens    int
	outputs   map[domain.OutputKind][]string
	errors    []domain.RunError
	timing    domain.BatchTiming

	enhanceSpent time.Duration
	enhanceCount int
	produceSpent time.Duration
	produceCount int
}

func newRunState(cfg Config, total int) *runState {
	outputs := make(map[domain.OutputKind][]string, len(cfg.Kinds))
	for _, kind := range cfg.Kinds {
		outputs[kind] = []string{}
	}
	return &runState{
		total:   total,
		enhance: cfg.Enhance,
		outputs: outputs,
		errors:  []domain.RunError{},
	}
}

func (r *runState) addOutput(kind domain.OutputKind, ref string) {
	r.outputs[kind] = append(r.outputs[kind], ref)
}

func (r *runState) addError(tip domain.Tip, stage string, err error) {
	r.errors = append(r.errors, domain.RunError{
		TipID:    tip.ID,
		TipTitle: tip.Title,
		Stage:    stage,
		Message:  err.Error(),
	})
}

func (r *runState) finishTip(ok bool) {
	r.processed++
	if ok {
		r.succeeded++
	} else {
		r.failed++
	}
}

func (r *runState) cancelTip(tip domain.Tip) {
	r.addError(tip, domain.StageCancelled, domain.ErrCancelled)
	r.finishTip(false)
}

func (r *runState) observeEnhancement(d time.Duration) {
	r.enhanceSpent += d
	r.enhanceCount++
}

func (r *runState) observeProduction(d time.Duration) {
	r.produceSpent += d
	r.produceCount++
}

func (r *runState) avgEnhancement() time.Duration {
	if r.enhanceCount == 0 {
		return 0
	}
	return r.enhanceSpent / time.Duration(r.enhanceCount)
}

func (r *runState) avgProduction() time.Duration {
	if r.produceCount == 0 {
		return 0
	}
	return r.produceSpent / time.Duration(r.produceCount)
}

func (r *runState) result(total time.Duration, costPer1K float64) domain.BatchResult {
	outputs := make(map[domain.OutputKind][]string, len(r.outputs))
	for kind, refs := range r.outputs {
		outputs[kind] = append([]string{}, refs...)
	}

	res := domain.BatchResult{
		Processed: r.processed,
		Succeeded: r.succeeded,
		Failed:    r.failed,
		Enhanced:  r.enhanced,
		Outputs:   outputs,
		Errors:    append([]domain.RunError{}, r.errors...),
		Timing:    r.timing,
	}
	res.Timing.Total = total

	if r.enhance {
		res.Costs = &domain.Costs{
			Tokens:        r.tokens,
			EstimatedCost: float64(r.tokens) / 1000 * costPer1K,
		}
	}
	return res
}
