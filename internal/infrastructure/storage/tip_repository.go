package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

var tipColumns = []string{
	"id",
	"category",
	"title",
	"subtitle",
	"description",
	"benefit_primary",
	"benefit_secondary",
	"benefit_tertiary",
	"implementation_time",
	"implementation_difficulty",
	"implementation_cost",
	"tags",
	"status",
}

// Migrate creates the tables used by the repositories if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Placeholder picks the bind-parameter style for a database/sql driver name.
func Placeholder(driver string) sq.PlaceholderFormat {
	if driver == "postgres" {
		return sq.Dollar
	}
	return sq.Question
}

// TipRepository reads tips from the content store.
type TipRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.TipSource = (*TipRepository)(nil)

// NewTipRepository wires a sql.DB implementation.
func NewTipRepository(db *sql.DB, placeholder sq.PlaceholderFormat) *TipRepository {
	return &TipRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}
}

// FetchTips returns tips matching filter. Explicit ids come back in the requested order.
func (r *TipRepository) FetchTips(ctx context.Context, filter domain.TipFilter) ([]domain.Tip, error) {
	if r.db == nil {
		return nil, fmt.Errorf("tip repository has no database")
	}

	query := applyFilter(r.builder.Select(tipColumns...).From("tips"), filter)
	if len(filter.IDs) == 0 {
		query = query.OrderBy("created_at ASC", "id ASC")
		if filter.Limit > 0 {
			query = query.Limit(uint64(filter.Limit))
		}
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build tips query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tips: %w", err)
	}

	var tips []domain.Tip
	for rows.Next() {
		tip, err := scanTip(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		tips = append(tips, tip)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	if len(filter.IDs) > 0 {
		tips = orderByIDs(tips, filter.IDs)
	}
	return tips, nil
}

// CountTips counts matching tips, capped by the filter limit.
func (r *TipRepository) CountTips(ctx context.Context, filter domain.TipFilter) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("tip repository has no database")
	}

	stmt, args, err := applyFilter(r.builder.Select("COUNT(*)").From("tips"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tips: %w", err)
	}

	if len(filter.IDs) == 0 && filter.Limit > 0 && count > filter.Limit {
		count = filter.Limit
	}
	return count, nil
}

// SaveTip upserts a tip; used by imports and fixtures.
func (r *TipRepository) SaveTip(ctx context.Context, tip domain.Tip) error {
	tags, err := json.Marshal(nonNil(tip.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	status := tip.Status
	if status == "" {
		status = domain.StatusDraft
	}

	stmt, args, err := r.builder.Insert("tips").
		Columns(tipColumns...).
		Values(
			tip.ID,
			string(tip.Category),
			tip.Title,
			tip.Subtitle,
			tip.Description,
			tip.Benefits.Primary,
			tip.Benefits.Secondary,
			tip.Benefits.Tertiary,
			tip.Implementation.Time,
			tip.Implementation.Difficulty,
			tip.Implementation.Cost,
			string(tags),
			string(status),
		).
		Suffix(`ON CONFLICT (id) DO UPDATE
              SET category = EXCLUDED.category,
                  title = EXCLUDED.title,
                  subtitle = EXCLUDED.subtitle,
                  description = EXCLUDED.description,
                  benefit_primary = EXCLUDED.benefit_primary,
                  benefit_secondary = EXCLUDED.benefit_secondary,
                  benefit_tertiary = EXCLUDED.benefit_tertiary,
                  implementation_time = EXCLUDED.implementation_time,
                  implementation_difficulty = EXCLUDED.implementation_difficulty,
                  implementation_cost = EXCLUDED.implementation_cost,
                  tags = EXCLUDED.tags,
                  status = EXCLUDED.status`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert tip %s: %w", tip.ID, err)
	}
	return nil
}

func applyFilter(query sq.SelectBuilder, filter domain.TipFilter) sq.SelectBuilder {
	if len(filter.IDs) > 0 {
		query = query.Where(sq.Eq{"id": filter.IDs})
	}
	if len(filter.Categories) > 0 {
		cats := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			cats[i] = string(c)
		}
		query = query.Where(sq.Eq{"category": cats})
	}
	return query
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTip(row rowScanner) (domain.Tip, error) {
	var (
		tip      domain.Tip
		category string
		status   string
		tags     string
	)
	err := row.Scan(
		&tip.ID,
		&category,
		&tip.Title,
		&tip.Subtitle,
		&tip.Description,
		&tip.Benefits.Primary,
		&tip.Benefits.Secondary,
		&tip.Benefits.Tertiary,
		&tip.Implementation.Time,
		&tip.Implementation.Difficulty,
		&tip.Implementation.Cost,
		&tags,
		&status,
	)
	if err != nil {
		return domain.Tip{}, fmt.Errorf("scan tip: %w", err)
	}

	tip.Category = domain.Category(category)
	tip.Status = domain.TipStatus(status)
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &tip.Tags); err != nil {
			return domain.Tip{}, fmt.Errorf("decode tags of tip %s: %w", tip.ID, err)
		}
	}
	return tip, nil
}

func orderByIDs(tips []domain.Tip, ids []string) []domain.Tip {
	byID := make(map[string]domain.Tip, len(tips))
	for _, tip := range tips {
		byID[tip.ID] = tip
	}
	ordered := make([]domain.Tip, 0, len(tips))
	for _, id := range ids {
		if tip, ok := byID[id]; ok {
			ordered = append(ordered, tip)
			delete(byID, id)
		}
	}
	return ordered
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
