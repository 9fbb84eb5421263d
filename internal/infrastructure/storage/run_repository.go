package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

// RunRecord is the stored headline of a finished run.
type RunRecord struct {
	RunID      string           `json:"runId"`
	Status     domain.RunStatus `json:"status"`
	TotalTips  int              `json:"totalTips"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Enhanced   int              `json:"enhanced"`
	Tokens     int              `json:"tokens"`
	Cost       float64          `json:"cost"`
	ReportPath string           `json:"reportPath"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// RunRepository persists run history for auditing.
type RunRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.RunStore = (*RunRepository)(nil)

// NewRunRepository wires a sql.DB implementation.
func NewRunRepository(db *sql.DB, placeholder sq.PlaceholderFormat) *RunRepository {
	return &RunRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// SaveRun stores the result headline plus the full JSON payload.
func (r *RunRepository) SaveRun(ctx context.Context, result domain.PipelineResult) error {
	if r.db == nil {
		return nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	var tokens int
	var cost float64
	if result.Costs != nil {
		tokens = result.Costs.Tokens
		cost = result.Costs.EstimatedCost
	}

	stmt, args, err := r.builder.Insert("pipeline_runs").
		Columns("run_id", "status", "total_tips", "succeeded", "failed", "enhanced",
			"tokens", "cost", "report_path", "started_at", "finished_at", "payload").
		Values(
			result.RunID,
			string(result.Status),
			result.Summary.TotalTips,
			result.Summary.SuccessCount,
			result.Summary.FailedCount,
			result.Summary.EnhancedTips,
			tokens,
			cost,
			result.ReportPath,
			result.Timing.StartedAt.UTC(),
			result.Timing.FinishedAt.UTC(),
			string(payload),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", result.RunID, err)
	}
	return nil
}

// RecentRuns returns the newest runs first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	stmt, args, err := r.builder.
		Select("run_id", "status", "total_tips", "succeeded", "failed", "enhanced",
			"tokens", "cost", "report_path", "started_at", "finished_at").
		From("pipeline_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var status string
		if err := rows.Scan(
			&rec.RunID, &status, &rec.TotalTips, &rec.Succeeded, &rec.Failed, &rec.Enhanced,
			&rec.Tokens, &rec.Cost, &rec.ReportPath, &rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Status = domain.RunStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}
