// Package testutil holds in-memory collaborators shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"TipsPipeline/internal/domain"
)

// Tips builds n published health tips with ids "1".."n".
func Tips(n int) []domain.Tip {
	tips := make([]domain.Tip, 0, n)
	for i := 1; i <= n; i++ {
		tips = append(tips, domain.Tip{
			ID:          fmt.Sprint(i),
			Category:    domain.CategoryHealth,
			Title:       fmt.Sprintf("Tip %d", i),
			Description: fmt.Sprintf("Original description %d", i),
			Benefits:    domain.Benefits{Primary: "More energy"},
			Tags:        []string{"morning"},
			Status:      domain.StatusPublished,
		})
	}
	return tips
}

// StaticSource serves a fixed tip list.
type StaticSource struct {
	Tips []domain.Tip
	Err  error

	mu      sync.Mutex
	fetches int
	counts  int
}

// FetchTips filters Tips by ids (keeping the requested order), categories and limit.
func (s *StaticSource) FetchTips(_ context.Context, filter domain.TipFilter) ([]domain.Tip, error) {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()

	return s.filter(filter)
}

func (s *StaticSource) filter(filter domain.TipFilter) ([]domain.Tip, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	var out []domain.Tip
	if len(filter.IDs) > 0 {
		byID := make(map[string]domain.Tip, len(s.Tips))
		for _, tip := range s.Tips {
			byID[tip.ID] = tip
		}
		for _, id := range filter.IDs {
			if tip, ok := byID[id]; ok {
				out = append(out, tip)
			}
		}
		return out, nil
	}

	for _, tip := range s.Tips {
		if !matchesCategory(tip, filter.Categories) {
			continue
		}
		out = append(out, tip)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// CountTips reports how many tips FetchTips would return.
func (s *StaticSource) CountTips(_ context.Context, filter domain.TipFilter) (int, error) {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()

	tips, err := s.filter(filter)
	return len(tips), err
}

// Counts returns how many times CountTips was called.
func (s *StaticSource) Counts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Fetches returns how many times FetchTips was called.
func (s *StaticSource) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func matchesCategory(tip domain.Tip, categories []domain.Category) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if tip.Category == c {
			return true
		}
	}
	return false
}

// EnhancerFunc adapts a function to ports.Enhancer.
type EnhancerFunc func(ctx context.Context, tip domain.Tip) (domain.EnhancedContent, error)

// Enhance calls f.
func (f EnhancerFunc) Enhance(ctx context.Context, tip domain.Tip) (domain.EnhancedContent, error) {
	return f(ctx, tip)
}

// Producer records every job and delegates to Fn when set.
type Producer struct {
	For domain.OutputKind
	Fn  func(ctx context.Context, job domain.ProductionJob) (string, error)

	mu   sync.Mutex
	jobs []domain.ProductionJob
}

// Kind returns the configured kind.
func (p *Producer) Kind() domain.OutputKind { return p.For }

// Produce records the job and returns "<kind>(<tip id>)" unless Fn overrides it.
func (p *Producer) Produce(ctx context.Context, job domain.ProductionJob) (string, error) {
	p.mu.Lock()
	p.jobs = append(p.jobs, job)
	p.mu.Unlock()

	if p.Fn != nil {
		return p.Fn(ctx, job)
	}
	return Ref(p.For, job.Tip.ID), nil
}

// Jobs returns a copy of the recorded jobs.
func (p *Producer) Jobs() []domain.ProductionJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ProductionJob{}, p.jobs...)
}

// Ref is the artifact reference the default Producer returns.
func Ref(kind domain.OutputKind, tipID string) string {
	return fmt.Sprintf("%s(%s)", kind, tipID)
}
