package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TipsPipeline/internal/config"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

// Enhancer implements ports.Enhancer backed by OpenAI-compatible chat completion APIs.
type Enhancer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Enhancer = (*Enhancer)(nil)

// NewEnhancer builds a client from configuration.
func NewEnhancer(cfg config.ChatGPTConfig) *Enhancer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Enhancer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Enhance asks the model for structured JSON content about the tip.
func (e *Enhancer) Enhance(ctx context.Context, tip domain.Tip) (domain.EnhancedContent, error) {
	if e == nil {
		return domain.EnhancedContent{}, fmt.Errorf("enhancer is nil")
	}
	if e.apiKey == "" || e.endpoint == "" || e.model == "" {
		return domain.EnhancedContent{}, fmt.Errorf("enhancer misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(e.systemPrompt)},
			{Role: "user", Content: buildPrompt(tip)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.7,
	})
	if err != nil {
		return domain.EnhancedContent{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.EnhancedContent{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return domain.EnhancedContent{}, fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.EnhancedContent{}, fmt.Errorf("chat api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return domain.EnhancedContent{}, fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return domain.EnhancedContent{}, fmt.Errorf("completion has no choices")
	}

	var content domain.EnhancedContent
	raw := strings.TrimSpace(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return domain.EnhancedContent{}, fmt.Errorf("decode enhanced content: %w", err)
	}
	content.TipID = tip.ID
	content.TokensUsed = completion.Usage.TotalTokens

	return content, nil
}

func buildPrompt(tip domain.Tip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Enhance this %s tip for publication.\n\n", tip.Category)
	fmt.Fprintf(&b, "Title: %s\n", tip.Title)
	if tip.Subtitle != "" {
		fmt.Fprintf(&b, "Subtitle: %s\n", tip.Subtitle)
	}
	if tip.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", tip.Description)
	}
	for _, benefit := range []string{tip.Benefits.Primary, tip.Benefits.Secondary, tip.Benefits.Tertiary} {
		if benefit != "" {
			fmt.Fprintf(&b, "Benefit: %s\n", benefit)
		}
	}
	if impl := tip.Implementation; impl.Time != "" || impl.Difficulty != "" || impl.Cost != "" {
		fmt.Fprintf(&b, "Implementation: time %s, difficulty %s, cost %s\n", impl.Time, impl.Difficulty, impl.Cost)
	}
	if len(tip.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(tip.Tags, ", "))
	}
	b.WriteString("\nRespond with a JSON object with keys: description (string), benefits (array of strings), ")
	b.WriteString("steps (array of strings), social (object with twitter, instagram, linkedin strings), ")
	b.WriteString("proTips (array), pitfalls (array), successMetrics (array).")
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You are a helpful assistant that expands short lifestyle tips into practical content."
	}
	return prompt
}
