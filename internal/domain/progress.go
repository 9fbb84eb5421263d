package domain

import "time"

// Stage is a step of the executor run lifecycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching"
	StageEnhancing  Stage = "enhancing"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
)

func (s Stage) String() string { return string(s) }

// ProgressEvent is a transient snapshot delivered to subscribers.
type ProgressEvent struct {
	Stage              Stage         `json:"stage"`
	Current            int           `json:"current"`
	Total              int           `json:"total"`
	Percentage         float64       `json:"percentage"`
	CurrentItem        string        `json:"currentTip,omitempty"`
	EstimatedRemaining time.Duration `json:"estimatedRemaining"`
}

// NewProgressEvent fills the derived percentage and remaining-time fields.
func NewProgressEvent(stage Stage, current, total int, item string, avgItem time.Duration) ProgressEvent {
	ev := ProgressEvent{
		Stage:       stage,
		Current:     current,
		Total:       total,
		CurrentItem: item,
	}
	if total > 0 {
		ev.Percentage = float64(current) / float64(total) * 100
		if remaining := total - current; remaining > 0 {
			ev.EstimatedRemaining = time.Duration(remaining) * avgItem
		}
	}
	return ev
}
