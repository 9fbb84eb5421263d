package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

const documentsDir = "documents"

// Producer renders one PDF document per tip under <outputDir>/documents.
type Producer struct{}

var _ ports.Producer = Producer{}

// NewProducer returns a document producer.
func NewProducer() Producer { return Producer{} }

// Kind reports the output kind this producer handles.
func (Producer) Kind() domain.OutputKind { return domain.OutputDocument }

// Produce writes the PDF and returns its path.
func (Producer) Produce(ctx context.Context, job domain.ProductionJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(job.OutputDir, documentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create documents dir: %w", err)
	}
	path := filepath.Join(dir, job.Tip.Slug()+".pdf")

	opts := domain.DocumentOptions{PageSize: "A4", IncludeSteps: true}
	if job.Options.Document != nil {
		opts = *job.Options.Document
	}
	pageSize := opts.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}

	doc := fpdf.New("P", "mm", pageSize, "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(job.Tip.Title, true)
	doc.SetMargins(18, 20, 18)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.MultiCell(0, 9, tr(job.Tip.Title), "", "L", false)
	if job.Tip.Subtitle != "" {
		doc.SetFont("Helvetica", "I", 13)
		doc.MultiCell(0, 7, tr(job.Tip.Subtitle), "", "L", false)
	}
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 6, tr(strings.ToUpper(string(job.Tip.Category))), "", "L", false)
	doc.Ln(4)

	description := job.Tip.Description
	if job.Enhanced != nil && job.Enhanced.Description != "" {
		description = job.Enhanced.Description
	}
	paragraph(doc, tr, description)

	benefits := []string{}
	for _, b := range []string{job.Tip.Benefits.Primary, job.Tip.Benefits.Secondary, job.Tip.Benefits.Tertiary} {
		if b != "" {
			benefits = append(benefits, b)
		}
	}
	if job.Enhanced != nil && len(job.Enhanced.Benefits) > 0 {
		benefits = job.Enhanced.Benefits
	}
	list(doc, tr, "Benefits", benefits)

	impl := job.Tip.Implementation
	if impl.Time != "" || impl.Difficulty != "" || impl.Cost != "" {
		heading(doc, tr, "Getting started")
		paragraph(doc, tr, fmt.Sprintf("Time: %s   Difficulty: %s   Cost: %s", orDash(impl.Time), orDash(impl.Difficulty), orDash(impl.Cost)))
	}

	if e := job.Enhanced; e != nil {
		if opts.IncludeSteps {
			list(doc, tr, "Steps", e.Steps)
		}
		list(doc, tr, "Pro tips", e.ProTips)
		list(doc, tr, "Common pitfalls", e.Pitfalls)
		list(doc, tr, "How to measure success", e.SuccessMetrics)
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return path, nil
}

func heading(doc *fpdf.Fpdf, tr func(string) string, title string) {
	doc.Ln(3)
	doc.SetFont("Helvetica", "B", 13)
	doc.MultiCell(0, 7, tr(title), "", "L", false)
	doc.SetFont("Helvetica", "", 11)
}

func paragraph(doc *fpdf.Fpdf, tr func(string) string, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 6, tr(text), "", "L", false)
}

func list(doc *fpdf.Fpdf, tr func(string) string, title string, items []string) {
	if len(items) == 0 {
		return
	}
	heading(doc, tr, title)
	for i, item := range items {
		doc.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", i+1, item)), "", "L", false)
	}
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
