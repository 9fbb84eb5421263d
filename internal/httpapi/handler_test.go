package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TipsPipeline/internal/batch"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/infrastructure/storage"
	"TipsPipeline/internal/ports"
	"TipsPipeline/internal/source"
	"TipsPipeline/internal/testutil"
	"TipsPipeline/internal/usecase"
)

type staticRuns struct {
	mu      sync.Mutex
	records []storage.RunRecord
	err     error
	limit   int
}

func (s *staticRuns) RecentRuns(_ context.Context, limit int) ([]storage.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	return s.records, s.err
}

func (s *staticRuns) lastLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

func newTestHandler(t *testing.T, tips int, runs RunHistory, producers ...ports.Producer) *httptest.Server {
	t.Helper()

	reg := source.NewRegistry()
	reg.Register("database", &testutil.StaticSource{Tips: testutil.Tips(tips)})

	settings := usecase.DefaultSettings()
	settings.DefaultOutputDir = t.TempDir()

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Sources:  reg,
		Executor: batch.NewExecutor(batch.Deps{Producers: producers, Pacer: batch.NewPacer(0, 0)}),
		Settings: settings,
	})

	server := httptest.NewServer(NewHandler(pipeline, runs, nil).Router())
	t.Cleanup(server.Close)
	return server
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func runBody(dir string) string {
	return `{"source":"database","outputs":{"document":{}},"batchSize":5,"outputDir":"` + dir + `"}`
}

func TestValidateEndpoint(t *testing.T) {
	server := newTestHandler(t, 1, nil)

	resp, payload := post(t, server.URL+"/pipeline/validate", `{"source":"ftp","batchSize":0}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, payload["valid"])
	assert.Equal(t, []any{
		"Unknown source: ftp",
		"At least one output format must be enabled",
		"Batch size must be between 1 and 100",
		"Output directory is required",
	}, payload["errors"])

	resp, _ = post(t, server.URL+"/pipeline/validate", `{"unknownField":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEstimateEndpoint(t *testing.T) {
	server := newTestHandler(t, 4, nil)

	resp, payload := post(t, server.URL+"/pipeline/estimate", `{"outputs":{"document":{},"webpage":{}},"enhance":true,"batchSize":5,"outputDir":"x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), payload["recordCount"])
	assert.Equal(t, "40s", payload["estimatedTime"])
	assert.InDelta(t, 0.012, payload["estimatedCost"], 1e-9)
}

func TestExecuteEndpoint(t *testing.T) {
	server := newTestHandler(t, 2, nil, &testutil.Producer{For: domain.OutputDocument})

	resp, payload := post(t, server.URL+"/pipeline/runs", runBody(t.TempDir()))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", payload["status"])
	assert.NotEmpty(t, payload["runId"])

	resp, payload = post(t, server.URL+"/pipeline/runs", `{"outputs":{},"batchSize":5,"outputDir":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, []any{"At least one output format must be enabled"}, payload["problems"])
}

func TestExecuteEndpointNoRecords(t *testing.T) {
	server := newTestHandler(t, 0, nil, &testutil.Producer{For: domain.OutputDocument})

	resp, payload := post(t, server.URL+"/pipeline/runs", runBody(t.TempDir()))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, domain.ErrNoRecords.Error(), payload["error"])
}

func TestExecuteEndpointRejectsConcurrentRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &testutil.Producer{For: domain.OutputDocument, Fn: func(ctx context.Context, job domain.ProductionJob) (string, error) {
		close(started)
		<-release
		return "doc", nil
	}}
	server := newTestHandler(t, 1, nil, blocking)
	dir := t.TempDir()

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(server.URL+"/pipeline/runs", "application/json", strings.NewReader(runBody(dir)))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run never reached the producer")
	}

	resp, payload := post(t, server.URL+"/pipeline/runs", runBody(dir))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.ErrAlreadyRunning.Error(), payload["error"])

	resp, payload = post(t, server.URL+"/pipeline/validate", runBody(dir))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["valid"])

	progressResp, err := http.Get(server.URL + "/pipeline/progress")
	require.NoError(t, err)
	var ev map[string]any
	require.NoError(t, json.NewDecoder(progressResp.Body).Decode(&ev))
	progressResp.Body.Close()
	assert.Equal(t, string(domain.StageGenerating), ev["stage"])

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestQuickEndpoint(t *testing.T) {
	server := newTestHandler(t, 5, nil, &testutil.Producer{For: domain.OutputWebpage})

	resp, payload := post(t, server.URL+"/pipeline/quick/webpages?count=2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	summary := payload["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["totalTips"])

	resp, _ = post(t, server.URL+"/pipeline/quick/posters", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, server.URL+"/pipeline/quick/documents?count=zero", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRunsEndpoint(t *testing.T) {
	runs := &staticRuns{records: []storage.RunRecord{{RunID: "r-1", Status: domain.RunSuccess}}}
	server := newTestHandler(t, 0, runs)

	resp, err := http.Get(server.URL + "/pipeline/runs?limit=500")
	require.NoError(t, err)
	defer resp.Body.Close()

	var records []storage.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, records, 1)
	assert.Equal(t, "r-1", records[0].RunID)
	assert.Equal(t, maxRunsLimit, runs.lastLimit())

	runs.mu.Lock()
	runs.err = errors.New("db down")
	runs.mu.Unlock()
	failed, err := http.Get(server.URL + "/pipeline/runs")
	require.NoError(t, err)
	failed.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, failed.StatusCode)
	assert.Equal(t, defaultRunsLimit, runs.lastLimit())
}

func TestListRunsWithoutHistory(t *testing.T) {
	server := newTestHandler(t, 0, nil)

	resp, err := http.Get(server.URL + "/pipeline/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
