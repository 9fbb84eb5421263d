package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/testutil"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seedTips(t *testing.T, repo *TipRepository) {
	t.Helper()

	tips := testutil.Tips(4)
	tips[1].Category = domain.CategoryWealth
	tips[3].Category = domain.CategoryWealth
	tips[2].Tags = nil
	for _, tip := range tips {
		require.NoError(t, repo.SaveTip(context.Background(), tip))
	}
}

func TestTipRepositoryFetchByIDsKeepsRequestedOrder(t *testing.T) {
	repo := NewTipRepository(openTestDB(t), Placeholder("sqlite"))
	seedTips(t, repo)

	tips, err := repo.FetchTips(context.Background(), domain.TipFilter{IDs: []string{"3", "1", "missing"}})
	require.NoError(t, err)

	require.Len(t, tips, 2)
	assert.Equal(t, "3", tips[0].ID)
	assert.Equal(t, "1", tips[1].ID)
	assert.Equal(t, []string{"morning"}, tips[1].Tags)
	assert.Empty(t, tips[0].Tags)
	assert.Equal(t, domain.StatusPublished, tips[1].Status)
	assert.Equal(t, "More energy", tips[1].Benefits.Primary)
}

func TestTipRepositoryFetchByCategoryAndLimit(t *testing.T) {
	repo := NewTipRepository(openTestDB(t), Placeholder("sqlite"))
	seedTips(t, repo)
	ctx := context.Background()

	wealth, err := repo.FetchTips(ctx, domain.TipFilter{Categories: []domain.Category{domain.CategoryWealth}})
	require.NoError(t, err)
	require.Len(t, wealth, 2)
	assert.Equal(t, "2", wealth[0].ID)
	assert.Equal(t, "4", wealth[1].ID)

	limited, err := repo.FetchTips(ctx, domain.TipFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, limited, 3)

	count, err := repo.CountTips(ctx, domain.TipFilter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = repo.CountTips(ctx, domain.TipFilter{Categories: []domain.Category{domain.CategoryHealth}})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestTipRepositorySaveTipUpserts(t *testing.T) {
	repo := NewTipRepository(openTestDB(t), Placeholder("sqlite"))
	ctx := context.Background()

	tip := testutil.Tips(1)[0]
	require.NoError(t, repo.SaveTip(ctx, tip))
	tip.Title = "Renamed"
	require.NoError(t, repo.SaveTip(ctx, tip))

	tips, err := repo.FetchTips(ctx, domain.TipFilter{})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "Renamed", tips[0].Title)
}

func TestRunRepositorySaveAndList(t *testing.T) {
	repo := NewRunRepository(openTestDB(t), Placeholder("sqlite"))
	ctx := context.Background()

	started := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		result := domain.PipelineResult{
			RunID:   id,
			Status:  domain.RunPartial,
			Summary: domain.Summary{TotalTips: 3, SuccessCount: 2, FailedCount: 1, EnhancedTips: 3},
			Costs:   &domain.Costs{Tokens: 900, EstimatedCost: 0.0018},
		}
		result.Timing.StartedAt = started.Add(time.Duration(i) * time.Hour)
		result.Timing.FinishedAt = result.Timing.StartedAt.Add(time.Minute)
		require.NoError(t, repo.SaveRun(ctx, result))
	}

	runs, err := repo.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].RunID)
	assert.Equal(t, domain.RunPartial, runs[0].Status)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, 900, runs[0].Tokens)
	assert.InDelta(t, 0.0018, runs[0].Cost, 1e-9)
}

func TestPlaceholder(t *testing.T) {
	stmt, _, err := NewTipRepository(nil, Placeholder("postgres")).builder.
		Select("id").From("tips").Where("id = ?", "1").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM tips WHERE id = $1", stmt)
}
