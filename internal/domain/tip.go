package domain

import (
	"regexp"
	"strings"
)

// Category groups tips by the area of life they address.
type Category string

const (
	CategoryHealth    Category = "health"
	CategoryWealth    Category = "wealth"
	CategoryHappiness Category = "happiness"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryHealth, CategoryWealth, CategoryHappiness:
		return true
	}
	return false
}

// TipStatus is the lifecycle state of a tip in the content store.
type TipStatus string

const (
	StatusDraft     TipStatus = "draft"
	StatusPublished TipStatus = "published"
)

// Benefits holds the short benefit statements shown on tip cards.
type Benefits struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Tertiary  string `json:"tertiary"`
}

// Implementation describes what it takes to apply a tip.
type Implementation struct {
	Time       string `json:"time"`
	Difficulty string `json:"difficulty"`
	Cost       string `json:"cost"`
}

// Tip is a content record owned by the content store. The pipeline never mutates it.
type Tip struct {
	ID             string         `json:"id"`
	Category       Category       `json:"category"`
	Title          string         `json:"title"`
	Subtitle       string         `json:"subtitle"`
	Description    string         `json:"description"`
	Benefits       Benefits       `json:"benefits"`
	Implementation Implementation `json:"implementation"`
	Tags           []string       `json:"tags"`
	Status         TipStatus      `json:"status"`
}

var slugExpr = regexp.MustCompile(`[^a-z0-9]+`)

// Slug returns a file-safe name built from the id and title.
func (t Tip) Slug() string {
	title := slugExpr.ReplaceAllString(strings.ToLower(t.Title), "-")
	title = strings.Trim(title, "-")
	if len(title) > 48 {
		title = strings.TrimRight(title[:48], "-")
	}
	id := slugExpr.ReplaceAllString(strings.ToLower(t.ID), "-")
	if title == "" {
		return "tip-" + id
	}
	return "tip-" + id + "-" + title
}

// SocialVariants are platform-specific rewrites of a tip.
type SocialVariants struct {
	Twitter   string `json:"twitter"`
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
}

// EnhancedContent is the enrichment produced for one tip during one run.
type EnhancedContent struct {
	TipID          string         `json:"tipId"`
	Description    string         `json:"description"`
	Benefits       []string       `json:"benefits"`
	Steps          []string       `json:"steps"`
	Social         SocialVariants `json:"social"`
	ProTips        []string       `json:"proTips"`
	Pitfalls       []string       `json:"pitfalls"`
	SuccessMetrics []string       `json:"successMetrics"`
	TokensUsed     int            `json:"tokensUsed"`
}

// TipFilter selects tips from a source: explicit ids win over the limit.
type TipFilter struct {
	IDs        []string
	Limit      int
	Categories []Category
}
