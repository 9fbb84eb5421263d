package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"TipsPipeline/internal/domain"
)

const reportDirName = "reports"

// writeReport renders the run report under <outputDir>/reports and returns its path.
func writeReport(outputDir string, result domain.PipelineResult, maxErrors, maxArtifacts int) (string, error) {
	dir := filepath.Join(outputDir, reportDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("pipeline-report-%s.txt", result.RunID))
	if err := os.WriteFile(path, []byte(renderReport(result, maxErrors, maxArtifacts)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// renderReport is a pure function of result: the same result yields the same text.
func renderReport(result domain.PipelineResult, maxErrors, maxArtifacts int) string {
	var b strings.Builder
	cfg := result.Config

	section(&b, "PIPELINE REPORT")
	fmt.Fprintf(&b, "Run ID: %s\n", result.RunID)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Started: %s\n", result.Timing.StartedAt.UTC().Format(time.RFC3339))

	section(&b, "CONFIGURATION")
	fmt.Fprintf(&b, "Source: %s\n", cfg.Source)
	if len(cfg.TipIDs) > 0 {
		fmt.Fprintf(&b, "Tip IDs: %s\n", strings.Join(cfg.TipIDs, ", "))
	} else {
		fmt.Fprintf(&b, "Limit: %s\n", limitLabel(cfg.Limit))
	}
	if len(cfg.Categories) > 0 {
		cats := make([]string, len(cfg.Categories))
		for i, c := range cfg.Categories {
			cats[i] = string(c)
		}
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(cats, ", "))
	}
	fmt.Fprintf(&b, "Enhancement: %s\n", onOff(cfg.Enhance))
	fmt.Fprintf(&b, "Outputs: %s\n", kindList(cfg.Outputs.Kinds()))
	fmt.Fprintf(&b, "Batch size: %d\n", cfg.BatchSize)
	fmt.Fprintf(&b, "Output directory: %s\n", cfg.OutputDir)
	fmt.Fprintf(&b, "Webhook: %s\n", onOff(cfg.Webhook))

	section(&b, "SUMMARY")
	fmt.Fprintf(&b, "Total tips: %d\n", result.Summary.TotalTips)
	fmt.Fprintf(&b, "Processed: %d\n", result.Summary.ProcessedTips)
	fmt.Fprintf(&b, "Enhanced: %d\n", result.Summary.EnhancedTips)
	fmt.Fprintf(&b, "Succeeded: %d\n", result.Summary.SuccessCount)
	fmt.Fprintf(&b, "Failed: %d\n", result.Summary.FailedCount)

	section(&b, "OUTPUTS")
	kinds := cfg.Outputs.Kinds()
	for _, kind := range kinds {
		fmt.Fprintf(&b, "%s: %d\n", kind, len(result.Outputs[kind]))
	}

	section(&b, "TIMING")
	fmt.Fprintf(&b, "Fetching: %s\n", roundDuration(result.Timing.Fetching))
	fmt.Fprintf(&b, "Enhancement: %s\n", roundDuration(result.Timing.Enhancement))
	fmt.Fprintf(&b, "Generation: %s\n", roundDuration(result.Timing.Generation))
	fmt.Fprintf(&b, "Elapsed: %s\n", roundDuration(result.Timing.Total))

	section(&b, "COSTS")
	if result.Costs == nil {
		b.WriteString("Enhancement not requested\n")
	} else {
		fmt.Fprintf(&b, "Tokens: %d\n", result.Costs.Tokens)
		fmt.Fprintf(&b, "Estimated cost: $%.4f\n", result.Costs.EstimatedCost)
	}

	section(&b, fmt.Sprintf("ERRORS (%d)", len(result.Errors)))
	if len(result.Errors) == 0 {
		b.WriteString("None\n")
	}
	for i, e := range result.Errors {
		if i == maxErrors {
			fmt.Fprintf(&b, "... and %d more\n", len(result.Errors)-maxErrors)
			break
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, e.Stage, errorLabel(e))
	}

	section(&b, "ARTIFACTS")
	for _, kind := range kinds {
		refs := result.Outputs[kind]
		fmt.Fprintf(&b, "%s:\n", kind)
		if len(refs) == 0 {
			b.WriteString("  (none)\n")
		}
		for i, ref := range refs {
			if i == maxArtifacts {
				fmt.Fprintf(&b, "  ... and %d more\n", len(refs)-maxArtifacts)
				break
			}
			fmt.Fprintf(&b, "  - %s\n", ref)
		}
	}

	return b.String()
}

// buildSummaryMessage formats the short Markdown digest sent to the webhook.
func buildSummaryMessage(result domain.PipelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Tips pipeline* `%s`\n", result.RunID)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Tips: %d/%d succeeded, %d failed\n",
		result.Summary.SuccessCount, result.Summary.TotalTips, result.Summary.FailedCount)
	for _, kind := range result.Config.Outputs.Kinds() {
		fmt.Fprintf(&b, "%s: %d\n", kind, len(result.Outputs[kind]))
	}
	if result.Costs != nil {
		fmt.Fprintf(&b, "Cost: $%.4f (%d tokens)\n", result.Costs.EstimatedCost, result.Costs.Tokens)
	}
	fmt.Fprintf(&b, "Duration: %s\n", roundDuration(result.Timing.Total))
	if result.ReportPath != "" {
		fmt.Fprintf(&b, "Report: %s\n", result.ReportPath)
	}
	return b.String()
}

func section(b *strings.Builder, title string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n")
}

func errorLabel(e domain.RunError) string {
	if e.TipID == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (#%s): %s", e.TipTitle, e.TipID, e.Message)
}

func kindList(kinds []domain.OutputKind) string {
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func limitLabel(limit int) string {
	if limit <= 0 {
		return "all"
	}
	return fmt.Sprint(limit)
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

func roundDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
