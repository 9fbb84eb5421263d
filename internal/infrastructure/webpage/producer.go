package webpage

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

const pagesDir = "pages"

//go:embed page.html.tmpl
var pageTemplate string

var page = template.Must(template.New("page").Parse(pageTemplate))

// Producer renders one static HTML page per tip under <outputDir>/pages.
type Producer struct{}

var _ ports.Producer = Producer{}

// NewProducer returns a webpage producer.
func NewProducer() Producer { return Producer{} }

// Kind reports the output kind this producer handles.
func (Producer) Kind() domain.OutputKind { return domain.OutputWebpage }

type view struct {
	Tip         domain.Tip
	Theme       string
	Description string
	Benefits    []string
	Enhanced    *domain.EnhancedContent
	ShowSocial  bool
}

// Produce writes the page and returns its path.
func (Producer) Produce(ctx context.Context, job domain.ProductionJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v := view{Tip: job.Tip, Theme: "light", Description: job.Tip.Description, Enhanced: job.Enhanced}
	if opts := job.Options.Webpage; opts != nil {
		if opts.Theme != "" {
			v.Theme = opts.Theme
		}
		v.ShowSocial = opts.IncludeSocial && job.Enhanced != nil
	}
	for _, b := range []string{job.Tip.Benefits.Primary, job.Tip.Benefits.Secondary, job.Tip.Benefits.Tertiary} {
		if b != "" {
			v.Benefits = append(v.Benefits, b)
		}
	}
	if e := job.Enhanced; e != nil {
		if e.Description != "" {
			v.Description = e.Description
		}
		if len(e.Benefits) > 0 {
			v.Benefits = e.Benefits
		}
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}

	dir := filepath.Join(job.OutputDir, pagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create pages dir: %w", err)
	}
	path := filepath.Join(dir, job.Tip.Slug()+".html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}
	return path, nil
}
