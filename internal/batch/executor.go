// Package batch drives tips through enhancement and output production.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
	"TipsPipeline/internal/progress"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 10

// Config is the executor's view of a run.
type Config struct {
	Kinds     []domain.OutputKind
	Enhance   bool
	BatchSize int
	OutputDir string
	Options   domain.OutputSet
}

// Deps wires the collaborators of an Executor.
type Deps struct {
	Enhancer        ports.Enhancer
	Producers       []ports.Producer
	Pacer           *Pacer
	CostPer1KTokens float64
	Logger          *slog.Logger
}

// Executor runs one batch at a time; a concurrent call fails with
// domain.ErrAlreadyRunning and leaves the active run untouched.
type Executor struct {
	enhancer  ports.Enhancer
	producers map[domain.OutputKind]ports.Producer
	pacer     *Pacer
	costPer1K float64
	logger    *slog.Logger
	channel   *progress.Channel

	running atomic.Bool
	mu      sync.RWMutex
	current domain.ProgressEvent
}

// NewExecutor builds an idle executor.
func NewExecutor(deps Deps) *Executor {
	producers := make(map[domain.OutputKind]ports.Producer, len(deps.Producers))
	for _, p := range deps.Producers {
		if p != nil {
			producers[p.Kind()] = p
		}
	}
	return &Executor{
		enhancer:  deps.Enhancer,
		producers: producers,
		pacer:     deps.Pacer,
		costPer1K: deps.CostPer1KTokens,
		logger:    deps.Logger,
		channel:   progress.NewChannel(deps.Logger),
		current:   domain.ProgressEvent{Stage: domain.StageIdle},
	}
}

// Subscribe registers a progress handler.
func (e *Executor) Subscribe(h progress.Handler) func() {
	return e.channel.Subscribe(h)
}

// CurrentProgress returns the latest progress snapshot.
func (e *Executor) CurrentProgress() domain.ProgressEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Running reports whether a batch is in flight.
func (e *Executor) Running() bool {
	return e.running.Load()
}

// HasProducer reports whether kind can be produced.
func (e *Executor) HasProducer(kind domain.OutputKind) bool {
	_, ok := e.producers[kind]
	return ok
}

// ProcessBatch enhances (optionally) and produces outputs for tips in order.
// Per-tip failures are recorded in the result, never returned.
func (e *Executor) ProcessBatch(ctx context.Context, tips []domain.Tip, cfg Config) (domain.BatchResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return domain.BatchResult{}, domain.ErrAlreadyRunning
	}
	defer func() {
		e.setProgress(domain.ProgressEvent{Stage: domain.StageIdle})
		e.running.Store(false)
	}()

	started := time.Now()
	total := len(tips)
	run := newRunState(cfg, total)

	e.emit(domain.NewProgressEvent(domain.StageFetching, 0, total, "", 0))
	spans := partition(total, cfg.BatchSize)
	run.timing.Fetching = time.Since(started)
	e.debug("batch started", "tips", total, "batches", len(spans), "enhance", cfg.Enhance, "kinds", cfg.Kinds)

	if total > 0 {
		var enhanced []*domain.EnhancedContent
		if cfg.Enhance {
			enhanced = e.enhanceAll(ctx, tips, spans, run)
		}
		e.generateAll(ctx, tips, enhanced, spans, cfg, run)
	}

	e.emit(domain.NewProgressEvent(domain.StageComplete, total, total, "", 0))
	result := run.result(time.Since(started), e.costPer1K)
	e.debug("batch finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"enhanced", result.Enhanced,
	)
	return result, nil
}

func (e *Executor) enhanceAll(ctx context.Context, tips []domain.Tip, spans []span, run *runState) []*domain.EnhancedContent {
	started := time.Now()
	defer func() { run.timing.Enhancing = time.Since(started) }()

	out := make([]*domain.EnhancedContent, len(tips))
	if e.enhancer == nil {
		e.warn("enhancement requested but no enhancer is configured")
		return out
	}

	e.emit(domain.NewProgressEvent(domain.StageEnhancing, 0, len(tips), "", 0))
	done := 0

batches:
	for b, sp := range spans {
		if b > 0 {
			if err := e.pacer.WaitBatch(ctx); err != nil {
				break
			}
		}
		for i := sp.start; i < sp.end; i++ {
			if err := e.pacer.WaitCall(ctx); err != nil {
				break batches
			}

			tip := tips[i]
			callStart := time.Now()
			content, err := e.enhanceOne(ctx, tip)
			run.observeEnhancement(time.Since(callStart))
			done++

			if err != nil {
				e.warn("enhancement failed, using original content", "error", &domain.EnhancementError{TipID: tip.ID, Err: err})
			} else {
				if content.TipID == "" {
					content.TipID = tip.ID
				}
				out[i] = &content
				run.enhanced++
				run.tokens += content.TokensUsed
			}

			e.emit(domain.NewProgressEvent(domain.StageEnhancing, done, len(tips), tip.Title, run.avgEnhancement()))
		}
	}

	return out
}

func (e *Executor) enhanceOne(ctx context.Context, tip domain.Tip) (content domain.EnhancedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enhancer panicked: %v", r)
		}
	}()
	return e.enhancer.Enhance(ctx, tip)
}

func (e *Executor) generateAll(ctx context.Context, tips []domain.Tip, enhanced []*domain.EnhancedContent, spans []span, cfg Config, run *runState) {
	started := time.Now()
	defer func() { run.timing.Generating = time.Since(started) }()

	e.emit(domain.NewProgressEvent(domain.StageGenerating, 0, len(tips), "", 0))

	for _, sp := range spans {
		for i := sp.start; i < sp.end; i++ {
			tip := tips[i]
			if ctx.Err() != nil {
				run.cancelTip(tip)
				continue
			}

			var content *domain.EnhancedContent
			if enhanced != nil {
				content = enhanced[i]
			}

			itemStart := time.Now()
			e.processTip(ctx, tip, content, cfg, run)
			run.observeProduction(time.Since(itemStart))

			e.emit(domain.NewProgressEvent(domain.StageGenerating, run.processed, len(tips), tip.Title, run.avgProduction()))
		}
	}
}

// processTip attempts every requested kind for one tip. The tip fails only
// when kinds were requested and none produced an artifact.
func (e *Executor) processTip(ctx context.Context, tip domain.Tip, content *domain.EnhancedContent, cfg Config, run *runState) {
	job := domain.ProductionJob{
		Tip:       tip,
		Enhanced:  content,
		OutputDir: cfg.OutputDir,
		Options:   cfg.Options,
	}

	produced := 0
	for _, kind := range cfg.Kinds {
		if ctx.Err() != nil {
			run.cancelTip(tip)
			return
		}

		ref, err := e.produceOne(ctx, kind, job)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				run.cancelTip(tip)
				return
			}
			e.warn("production failed", "error", &domain.ProductionError{TipID: tip.ID, Kind: kind, Err: err})
			run.addError(tip, string(kind), err)
			continue
		}

		run.addOutput(kind, ref)
		produced++
	}

	run.finishTip(len(cfg.Kinds) == 0 || produced > 0)
}

func (e *Executor) produceOne(ctx context.Context, kind domain.OutputKind, job domain.ProductionJob) (ref string, err error) {
	producer, ok := e.producers[kind]
	if !ok {
		return "", fmt.Errorf("no producer registered for %s", kind)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panicked: %v", r)
		}
	}()

	ref, err = producer.Produce(ctx, job)
	if err != nil {
		return "", err
	}
	if ref == "" {
		return "", fmt.Errorf("%s producer returned an empty artifact reference", kind)
	}
	return ref, nil
}

func (e *Executor) emit(ev domain.ProgressEvent) {
	e.setProgress(ev)
	e.channel.Publish(ev)
}

func (e *Executor) setProgress(ev domain.ProgressEvent) {
	e.mu.Lock()
	e.current = ev
	e.mu.Unlock()
}

func (e *Executor) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Executor) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

type span struct {
	start, end int
}

// partition splits n items into contiguous spans of at most size items.
func partition(n, size int) []span {
	if size <= 0 {
		size = DefaultBatchSize
	}
	spans := make([]span, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, span{start: start, end: end})
	}
	return spans
}
