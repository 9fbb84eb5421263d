package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"TipsPipeline/internal/config"
	"TipsPipeline/internal/domain"
)

// runFlags are the pipeline config knobs shared by run, estimate and validate.
type runFlags struct {
	source     string
	ids        []string
	limit      int
	categories []string
	enhance    bool
	outputs    []string
	batchSize  int
	outputDir  string
	webhook    bool
	report     bool
	pageSize   string
	template   string
	theme      string
}

func (f *runFlags) register(fs *pflag.FlagSet, defaults config.PipelineConfig) {
	fs.StringVar(&f.source, "source", defaults.DefaultSource, "tip source (database, site)")
	fs.StringSliceVar(&f.ids, "ids", nil, "explicit tip ids; overrides --limit")
	fs.IntVar(&f.limit, "limit", 0, "maximum number of tips")
	fs.StringSliceVar(&f.categories, "category", nil, "restrict to categories (health, wealth, happiness)")
	fs.BoolVar(&f.enhance, "enhance", false, "enrich tips through the chat api before producing outputs")
	fs.StringSliceVar(&f.outputs, "outputs", []string{string(domain.OutputDocument)}, "output kinds (document, design_export, webpage)")
	fs.IntVar(&f.batchSize, "batch-size", defaults.BatchSize, "tips per batch")
	fs.StringVar(&f.outputDir, "output-dir", defaults.OutputDir, "artifact root directory")
	fs.BoolVar(&f.webhook, "webhook", false, "send a summary notification when done")
	fs.BoolVar(&f.report, "report", true, "write a text report into the output directory")
	fs.StringVar(&f.pageSize, "page-size", "A4", "document page size")
	fs.StringVar(&f.template, "template", "", "design template id")
	fs.StringVar(&f.theme, "theme", "light", "webpage theme")
}

func (f *runFlags) pipelineConfig() (domain.PipelineConfig, error) {
	cfg := domain.PipelineConfig{
		Source:         f.source,
		TipIDs:         f.ids,
		Limit:          f.limit,
		Enhance:        f.enhance,
		BatchSize:      f.batchSize,
		OutputDir:      f.outputDir,
		Webhook:        f.webhook,
		GenerateReport: f.report,
	}

	for _, raw := range f.categories {
		c := domain.Category(strings.ToLower(strings.TrimSpace(raw)))
		if !c.Valid() {
			return domain.PipelineConfig{}, fmt.Errorf("unknown category %q", raw)
		}
		cfg.Categories = append(cfg.Categories, c)
	}

	for _, raw := range f.outputs {
		switch domain.OutputKind(strings.TrimSpace(raw)) {
		case domain.OutputDocument:
			cfg.Outputs.Document = &domain.DocumentOptions{PageSize: f.pageSize, IncludeSteps: true}
		case domain.OutputDesignExport:
			cfg.Outputs.DesignExport = &domain.DesignExportOptions{TemplateID: f.template}
		case domain.OutputWebpage:
			cfg.Outputs.Webpage = &domain.WebpageOptions{Theme: f.theme, IncludeSocial: true}
		case "":
		default:
			return domain.PipelineConfig{}, fmt.Errorf("unknown output kind %q", raw)
		}
	}

	return cfg, nil
}
