package design

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"TipsPipeline/internal/config"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

// Client creates draft designs in an external design tool and returns their edit URL.
type Client struct {
	endpoint   string
	apiKey     string
	templateID string
	http       *http.Client
}

var _ ports.Producer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.DesignConfig) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		templateID: cfg.TemplateID,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind reports the output kind this producer handles.
func (c *Client) Kind() domain.OutputKind { return domain.OutputDesignExport }

type designRequest struct {
	Title      string   `json:"title"`
	TemplateID string   `json:"template_id,omitempty"`
	BrandKit   string   `json:"brand_kit,omitempty"`
	Category   string   `json:"category"`
	Headline   string   `json:"headline"`
	Subtitle   string   `json:"subtitle,omitempty"`
	Body       string   `json:"body"`
	Bullets    []string `json:"bullets,omitempty"`
}

type designResponse struct {
	ID      string `json:"id"`
	EditURL string `json:"edit_url"`
}

// Produce posts the tip as a design draft.
func (c *Client) Produce(ctx context.Context, job domain.ProductionJob) (string, error) {
	if c.endpoint == "" || c.apiKey == "" {
		return "", fmt.Errorf("design client misconfigured")
	}

	payload := buildRequest(job, c.templateID)

	var resp designResponse
	if err := c.post(ctx, "/designs", payload, &resp); err != nil {
		return "", err
	}

	switch {
	case resp.EditURL != "":
		return resp.EditURL, nil
	case resp.ID != "":
		return c.endpoint + "/designs/" + resp.ID, nil
	}
	return "", fmt.Errorf("design api returned neither id nor edit url")
}

func buildRequest(job domain.ProductionJob, defaultTemplate string) designRequest {
	tip := job.Tip
	req := designRequest{
		Title:      fmt.Sprintf("%s (#%s)", tip.Title, tip.ID),
		TemplateID: defaultTemplate,
		Category:   string(tip.Category),
		Headline:   tip.Title,
		Subtitle:   tip.Subtitle,
		Body:       tip.Description,
	}
	if opts := job.Options.DesignExport; opts != nil {
		if opts.TemplateID != "" {
			req.TemplateID = opts.TemplateID
		}
		req.BrandKit = opts.BrandKit
	}

	for _, b := range []string{tip.Benefits.Primary, tip.Benefits.Secondary, tip.Benefits.Tertiary} {
		if b != "" {
			req.Bullets = append(req.Bullets, b)
		}
	}
	if e := job.Enhanced; e != nil {
		if e.Description != "" {
			req.Body = e.Description
		}
		if len(e.Benefits) > 0 {
			req.Bullets = e.Benefits
		}
	}
	return req
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
