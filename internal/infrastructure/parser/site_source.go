package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/ports"
)

// SiteSource reads published tips from the public site's paginated tip listing.
type SiteSource struct {
	listingURL string
	client     *http.Client
	pageSize   int
	logger     *slog.Logger
}

var _ ports.TipSource = (*SiteSource)(nil)

// NewSiteSource wires an HTTP client; pageSize defaults to 50.
func NewSiteSource(listingURL string, client *http.Client, log *slog.Logger) *SiteSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &SiteSource{listingURL: listingURL, client: client, pageSize: 50, logger: log}
}

// FetchTips walks listing pages and applies the filter client-side.
func (s *SiteSource) FetchTips(ctx context.Context, filter domain.TipFilter) ([]domain.Tip, error) {
	all, err := s.crawl(ctx)
	if err != nil {
		return nil, err
	}
	return applyFilter(all, filter), nil
}

// CountTips crawls the listing and counts matches; the site exposes no count endpoint.
func (s *SiteSource) CountTips(ctx context.Context, filter domain.TipFilter) (int, error) {
	tips, err := s.FetchTips(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(tips), nil
}

func (s *SiteSource) crawl(ctx context.Context) ([]domain.Tip, error) {
	if s.listingURL == "" {
		return nil, fmt.Errorf("site listing url is not configured")
	}

	var (
		results []domain.Tip
		seen    = map[string]struct{}{}
		skip    int
	)
	for {
		pageURL, err := buildPageURL(s.listingURL, skip, s.pageSize)
		if err != nil {
			return nil, err
		}

		doc, err := s.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", skip/s.pageSize+1, err)
		}

		page := extractTips(doc)
		s.debug("listing page parsed", "url", pageURL, "tips", len(page))
		fresh := 0
		for _, tip := range page {
			if _, ok := seen[tip.ID]; ok {
				continue
			}
			seen[tip.ID] = struct{}{}
			results = append(results, tip)
			fresh++
		}

		if len(page) < s.pageSize || fresh == 0 {
			break
		}
		skip += s.pageSize
	}

	return results, nil
}

func (s *SiteSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TipsPipeline/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractTips(doc *goquery.Document) []domain.Tip {
	var tips []domain.Tip
	doc.Find("article.tip").Each(func(_ int, sel *goquery.Selection) {
		if tip, ok := parseTip(sel); ok {
			tips = append(tips, tip)
		}
	})
	return tips
}

func parseTip(sel *goquery.Selection) (domain.Tip, bool) {
	id := strings.TrimSpace(sel.AttrOr("data-id", ""))
	title := text(sel.Find(".tip-title"))
	if id == "" || title == "" {
		return domain.Tip{}, false
	}

	tip := domain.Tip{
		ID:          id,
		Category:    domain.Category(strings.ToLower(sel.AttrOr("data-category", ""))),
		Title:       title,
		Subtitle:    text(sel.Find(".tip-subtitle")),
		Description: text(sel.Find(".tip-description")),
		Status:      domain.StatusPublished,
	}

	benefits := listItems(sel.Find(".tip-benefits li"))
	if len(benefits) > 0 {
		tip.Benefits.Primary = benefits[0]
	}
	if len(benefits) > 1 {
		tip.Benefits.Secondary = benefits[1]
	}
	if len(benefits) > 2 {
		tip.Benefits.Tertiary = benefits[2]
	}

	impl := sel.Find(".tip-implementation").First()
	tip.Implementation = domain.Implementation{
		Time:       impl.AttrOr("data-time", ""),
		Difficulty: impl.AttrOr("data-difficulty", ""),
		Cost:       impl.AttrOr("data-cost", ""),
	}
	tip.Tags = listItems(sel.Find(".tip-tags li"))

	return tip, true
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.First().Text()), " ")
}

func listItems(sel *goquery.Selection) []string {
	var items []string
	sel.Each(func(_ int, li *goquery.Selection) {
		if v := strings.Join(strings.Fields(li.Text()), " "); v != "" {
			items = append(items, v)
		}
	})
	return items
}

func applyFilter(tips []domain.Tip, filter domain.TipFilter) []domain.Tip {
	if len(filter.IDs) > 0 {
		byID := make(map[string]domain.Tip, len(tips))
		for _, tip := range tips {
			byID[tip.ID] = tip
		}
		out := make([]domain.Tip, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if tip, ok := byID[id]; ok {
				out = append(out, tip)
			}
		}
		return out
	}

	allowed := map[domain.Category]bool{}
	for _, c := range filter.Categories {
		allowed[c] = true
	}

	out := make([]domain.Tip, 0, len(tips))
	for _, tip := range tips {
		if len(allowed) > 0 && !allowed[tip.Category] {
			continue
		}
		out = append(out, tip)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *SiteSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
