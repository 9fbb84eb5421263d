package usecase

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"TipsPipeline/internal/batch"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
	"TipsPipeline/internal/source"
	"TipsPipeline/internal/testutil"
)

type mockNotifier struct {
	mock.Mock
}

var _ ports.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) PublishSummary(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type mockRunStore struct {
	mock.Mock
}

var _ ports.RunStore = (*mockRunStore)(nil)

func (m *mockRunStore) SaveRun(ctx context.Context, result domain.PipelineResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

type fixture struct {
	src      *testutil.StaticSource
	pipeline *Pipeline
	dir      string
}

func newFixture(t *testing.T, tips int, enhancer ports.Enhancer, producers ...ports.Producer) *fixture {
	t.Helper()

	src := &testutil.StaticSource{Tips: testutil.Tips(tips)}
	reg := source.NewRegistry()
	reg.Register("database", src)

	exec := batch.NewExecutor(batch.Deps{
		Enhancer:        enhancer,
		Producers:       producers,
		Pacer:           batch.NewPacer(0, 0),
		CostPer1KTokens: 0.002,
	})

	dir := t.TempDir()
	settings := DefaultSettings()
	settings.DefaultOutputDir = dir

	return &fixture{
		src: src,
		dir: dir,
		pipeline: NewPipeline(PipelineDeps{
			Sources:  reg,
			Executor: exec,
			Settings: settings,
		}),
	}
}

func (f *fixture) config() domain.PipelineConfig {
	return domain.PipelineConfig{
		Source:    "database",
		Outputs:   domain.OutputSet{Document: &domain.DocumentOptions{}},
		BatchSize: 10,
		OutputDir: f.dir,
	}
}

func assertCountsConsistent(t *testing.T, res domain.PipelineResult) {
	t.Helper()
	assert.Equal(t, res.Summary.ProcessedTips, res.Summary.SuccessCount+res.Summary.FailedCount)
	assert.Equal(t, res.Summary.TotalTips, res.Summary.ProcessedTips)
	assert.Equal(t, res.Timing.FinishedAt.Sub(res.Timing.StartedAt), res.Timing.Total)
}

func TestValidateConfigAccumulatesErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, nil)
	v := f.pipeline.ValidateConfig(domain.PipelineConfig{BatchSize: 200, OutputDir: "out"})

	assert.False(t, v.Valid)
	assert.Equal(t, []string{
		"At least one output format must be enabled",
		"Batch size must be between 1 and 100",
	}, v.Errors)

	v = f.pipeline.ValidateConfig(domain.PipelineConfig{Source: "spreadsheet"})
	assert.Equal(t, []string{
		"Unknown source: spreadsheet",
		"At least one output format must be enabled",
		"Batch size must be between 1 and 100",
		"Output directory is required",
	}, v.Errors)

	v = f.pipeline.ValidateConfig(f.config())
	assert.True(t, v.Valid)
	assert.Empty(t, v.Errors)
}

func TestEstimatePipelineIsPure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 7, nil)
	cfg := f.config()
	cfg.Enhance = true
	cfg.Outputs.Webpage = &domain.WebpageOptions{}

	first, err := f.pipeline.EstimatePipeline(context.Background(), cfg)
	require.NoError(t, err)
	second, err := f.pipeline.EstimatePipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 7, first.RecordCount)
	assert.Equal(t, 70*time.Second, first.EstimatedTime)
	assert.InDelta(t, 0.021, first.EstimatedCost, 1e-9)
	assert.Equal(t, map[domain.OutputKind]int{
		domain.OutputDocument:     7,
		domain.OutputDesignExport: 0,
		domain.OutputWebpage:      7,
	}, first.EstimatedOutputs)
	assert.Zero(t, f.src.Fetches())
	assert.Equal(t, 2, f.src.Counts())
	assert.Equal(t, domain.StageIdle, f.pipeline.CurrentProgress().Stage)
}

func TestEstimatePipelineUsesLimitWithoutProbe(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 7, nil)
	cfg := f.config()
	cfg.Limit = 3

	est, err := f.pipeline.EstimatePipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, est.RecordCount)
	assert.Equal(t, 6*time.Second, est.EstimatedTime)
	assert.Zero(t, est.EstimatedCost)
	assert.Zero(t, f.src.Counts())
}

func TestExecutePipelineDocumentsOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3, nil, &testutil.Producer{For: domain.OutputDocument})

	res, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Outputs[domain.OutputDocument], 3)
	assert.NotContains(t, res.Outputs, domain.OutputDesignExport)
	assert.NotContains(t, res.Outputs, domain.OutputWebpage)
	assert.Nil(t, res.Costs)
	assert.Empty(t, res.ReportPath)
	assertCountsConsistent(t, res)
}

func TestExecutePipelineEnhancementFailureIsSilent(t *testing.T) {
	t.Parallel()

	enhancer := testutil.EnhancerFunc(func(_ context.Context, tip domain.Tip) (domain.EnhancedContent, error) {
		if tip.ID == "3" {
			return domain.EnhancedContent{}, errors.New("rate limited")
		}
		return domain.EnhancedContent{Description: "more", TokensUsed: 250}, nil
	})
	doc := &testutil.Producer{For: domain.OutputDocument}
	f := newFixture(t, 5, enhancer, doc)
	cfg := f.config()
	cfg.Enhance = true

	res, err := f.pipeline.ExecutePipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, res.Status)
	assert.Equal(t, 4, res.Summary.EnhancedTips)
	assert.Empty(t, res.Errors)
	assert.Len(t, doc.Jobs(), 5)
	require.NotNil(t, res.Costs)
	assert.Equal(t, 1000, res.Costs.Tokens)
	assertCountsConsistent(t, res)
}

func TestExecutePipelineNoRecords(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0, nil, &testutil.Producer{For: domain.OutputDocument})

	res, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
	require.ErrorIs(t, err, domain.ErrNoRecords)
	assert.Empty(t, res.RunID)
}

func TestExecutePipelineRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, nil)
	cfg := f.config()
	cfg.BatchSize = 0

	_, err := f.pipeline.ExecutePipeline(context.Background(), cfg)
	var verr *domain.ConfigValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Batch size must be between 1 and 100"}, verr.Problems)
}

func TestExecutePipelineSourceFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2, nil, &testutil.Producer{For: domain.OutputDocument})
	f.src.Err = errors.New("connection refused")

	res, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, domain.StagePipeline, res.Errors[0].Stage)
	assert.Contains(t, res.Errors[0].Message, "connection refused")
	assert.Zero(t, res.Summary.ProcessedTips)
}

func TestExecutePipelinePartialWritesReport(t *testing.T) {
	t.Parallel()

	doc := &testutil.Producer{
		For: domain.OutputDocument,
		Fn: func(_ context.Context, job domain.ProductionJob) (string, error) {
			if job.Tip.ID == "2" {
				return "", errors.New("renderer crashed")
			}
			return testutil.Ref(domain.OutputDocument, job.Tip.ID), nil
		},
	}
	f := newFixture(t, 3, nil, doc, &testutil.Producer{For: domain.OutputWebpage})
	cfg := f.config()
	cfg.Outputs.Webpage = &domain.WebpageOptions{}
	cfg.GenerateReport = true

	res, err := f.pipeline.ExecutePipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunPartial, res.Status)
	assert.Equal(t, []string{"document(1)", "document(3)"}, res.Outputs[domain.OutputDocument])
	assert.Equal(t, []string{"webpage(1)", "webpage(2)", "webpage(3)"}, res.Outputs[domain.OutputWebpage])
	assertCountsConsistent(t, res)

	require.NotEmpty(t, res.ReportPath)
	assert.True(t, strings.HasPrefix(res.ReportPath, f.dir))
	raw, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	report := string(raw)

	assert.Contains(t, report, "Status: partial")
	assert.Contains(t, report, "Outputs: document, webpage")
	assert.Contains(t, report, "document: 2\n")
	assert.Contains(t, report, "webpage: 3\n")
	assert.Contains(t, report, "1. [document] Tip 2 (#2): renderer crashed")
	assert.Contains(t, report, "  - webpage(2)")
	assert.Contains(t, report, "Enhancement not requested")
}

func TestExecutePipelineNotifiesAndStoresRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1, nil, &testutil.Producer{For: domain.OutputDocument})
	notifier := &mockNotifier{}
	notifier.On("PublishSummary", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "Status: success") && strings.Contains(msg, "document: 1")
	})).Return(errors.New("telegram down")).Once()
	runs := &mockRunStore{}
	runs.On("SaveRun", mock.Anything, mock.MatchedBy(func(r domain.PipelineResult) bool {
		return r.Status == domain.RunSuccess
	})).Return(nil).Once()

	f.pipeline.notifier = notifier
	f.pipeline.runs = runs

	cfg := f.config()
	cfg.Webhook = true
	res, err := f.pipeline.ExecutePipeline(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, res.Status, "webhook failures do not affect the run")
	notifier.AssertExpectations(t)
	runs.AssertExpectations(t)
}

func TestExecutePipelineAllTipsFailed(t *testing.T) {
	t.Parallel()

	doc := &testutil.Producer{
		For: domain.OutputDocument,
		Fn: func(context.Context, domain.ProductionJob) (string, error) {
			return "", errors.New("disk full")
		},
	}
	f := newFixture(t, 2, nil, doc)

	res, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
	require.NoError(t, err)

	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Equal(t, 2, res.Summary.FailedCount)
	assert.Len(t, res.Errors, 2)
	assert.Empty(t, res.Outputs[domain.OutputDocument])
	assertCountsConsistent(t, res)
}

func TestExecutePipelineConcurrentRunIsRejected(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	doc := &testutil.Producer{
		For: domain.OutputDocument,
		Fn: func(_ context.Context, job domain.ProductionJob) (string, error) {
			once.Do(func() { close(started) })
			<-release
			return "ok", nil
		},
	}
	f := newFixture(t, 2, nil, doc)

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
		done <- err
	}()

	<-started
	_, err := f.pipeline.ExecutePipeline(context.Background(), f.config())
	require.ErrorIs(t, err, domain.ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestQuickGenerate(t *testing.T) {
	t.Parallel()

	enhancer := testutil.EnhancerFunc(func(context.Context, domain.Tip) (domain.EnhancedContent, error) {
		return domain.EnhancedContent{TokensUsed: 10}, nil
	})
	web := &testutil.Producer{For: domain.OutputWebpage}
	f := newFixture(t, 5, enhancer, web)

	res, err := f.pipeline.QuickGenerate(context.Background(), PresetWebpages, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.RunSuccess, res.Status)
	assert.Equal(t, []string{"webpage(1)", "webpage(2)"}, res.Outputs[domain.OutputWebpage])
	assert.Len(t, res.Outputs, 1)
	assert.True(t, res.Config.Enhance)
	assert.Equal(t, 2, res.Summary.EnhancedTips)
	assert.NotEmpty(t, res.ReportPath)

	_, err = f.pipeline.QuickGenerate(context.Background(), Preset("posters"), 2)
	assert.Error(t, err)
}

func TestPresetOutputs(t *testing.T) {
	t.Parallel()

	cases := map[Preset][]domain.OutputKind{
		PresetDocuments:     {domain.OutputDocument},
		PresetDesignExports: {domain.OutputDesignExport},
		PresetWebpages:      {domain.OutputWebpage},
		PresetEverything:    domain.OrderedKinds,
	}
	for preset, want := range cases {
		outputs, err := preset.Outputs()
		require.NoError(t, err, preset)
		assert.Equal(t, want, outputs.Kinds(), preset)

		parsed, err := ParsePreset(string(preset))
		require.NoError(t, err)
		assert.Equal(t, preset, parsed)
	}
}

func TestRenderReportTruncatesAndIsDeterministic(t *testing.T) {
	t.Parallel()

	result := domain.PipelineResult{
		RunID:  "run-1",
		Status: domain.RunPartial,
		Config: domain.PipelineConfig{
			Source:    "database",
			Outputs:   domain.OutputSet{Document: &domain.DocumentOptions{}},
			BatchSize: 5,
			OutputDir: "/tmp/out",
		},
		Outputs: map[domain.OutputKind][]string{
			domain.OutputDocument: {"a.pdf", "b.pdf", "c.pdf"},
		},
		Costs: &domain.Costs{Tokens: 1500, EstimatedCost: 0.003},
	}
	for i := 0; i < 4; i++ {
		result.Errors = append(result.Errors, domain.RunError{TipID: "9", TipTitle: "Nine", Stage: "document", Message: "boom"})
	}

	first := renderReport(result, 2, 2)
	assert.Equal(t, first, renderReport(result, 2, 2))
	assert.Contains(t, first, "ERRORS (4)")
	assert.Contains(t, first, "... and 2 more\n")
	assert.Contains(t, first, "  ... and 1 more\n")
	assert.Contains(t, first, "Estimated cost: $0.0030")
	assert.Contains(t, first, "Limit: all")
	assert.NotContains(t, first, "c.pdf")
}
