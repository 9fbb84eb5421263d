package design

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TipsPipeline/internal/config"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/testutil"
)

func TestClientProduceReturnsEditURL(t *testing.T) {
	var got designRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/designs", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"d-1","edit_url":"https://design.example.org/edit/d-1"}`))
	}))
	defer server.Close()

	client := NewClient(config.DesignConfig{Endpoint: server.URL + "/", APIKey: "key", TemplateID: "base"})
	job := domain.ProductionJob{
		Tip:      testutil.Tips(1)[0],
		Enhanced: &domain.EnhancedContent{Description: "Expanded", Benefits: []string{"A", "B"}},
		Options:  domain.OutputSet{DesignExport: &domain.DesignExportOptions{TemplateID: "square", BrandKit: "kit-7"}},
	}

	ref, err := client.Produce(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "https://design.example.org/edit/d-1", ref)
	assert.Equal(t, domain.OutputDesignExport, client.Kind())

	assert.Equal(t, "square", got.TemplateID)
	assert.Equal(t, "kit-7", got.BrandKit)
	assert.Equal(t, "Expanded", got.Body)
	assert.Equal(t, []string{"A", "B"}, got.Bullets)
	assert.Equal(t, "Tip 1 (#1)", got.Title)
}

func TestClientProduceFallsBackToDesignID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"d-9"}`))
	}))
	defer server.Close()

	client := NewClient(config.DesignConfig{Endpoint: server.URL, APIKey: "key", TemplateID: "base"})
	ref, err := client.Produce(context.Background(), domain.ProductionJob{Tip: testutil.Tips(1)[0]})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/designs/d-9", ref)
}

func TestClientProduceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	tip := testutil.Tips(1)[0]

	_, err := NewClient(config.DesignConfig{Endpoint: server.URL}).Produce(context.Background(), domain.ProductionJob{Tip: tip})
	assert.Error(t, err)

	_, err = NewClient(config.DesignConfig{Endpoint: server.URL, APIKey: "key"}).Produce(context.Background(), domain.ProductionJob{Tip: tip})
	assert.ErrorContains(t, err, "401")
}

func TestBuildRequestWithoutEnhancement(t *testing.T) {
	tip := testutil.Tips(1)[0]
	tip.Benefits.Secondary = "Better sleep"

	req := buildRequest(domain.ProductionJob{Tip: tip}, "base")
	assert.Equal(t, "base", req.TemplateID)
	assert.Equal(t, []string{"More energy", "Better sleep"}, req.Bullets)
	assert.Equal(t, "health", req.Category)
}
