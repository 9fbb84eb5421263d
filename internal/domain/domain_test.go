package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTipSlug(t *testing.T) {
	t.Parallel()

	tip := Tip{ID: "42", Title: "Drink Water, Every Morning!"}
	assert.Equal(t, "tip-42-drink-water-every-morning", tip.Slug())

	assert.Equal(t, "tip-7", Tip{ID: "7"}.Slug())
}

func TestOutputSetKindsKeepsDeclaredOrder(t *testing.T) {
	t.Parallel()

	set := OutputSet{
		Webpage:  &WebpageOptions{},
		Document: &DocumentOptions{},
	}
	assert.Equal(t, []OutputKind{OutputDocument, OutputWebpage}, set.Kinds())
	assert.False(t, set.Enabled(OutputDesignExport))
	assert.Empty(t, OutputSet{}.Kinds())
	assert.Equal(t, OrderedKinds, AllOutputs().Kinds())
}

func TestNewProgressEvent(t *testing.T) {
	t.Parallel()

	ev := NewProgressEvent(StageGenerating, 1, 4, "Tip A", 2*time.Second)
	assert.Equal(t, 25.0, ev.Percentage)
	assert.Equal(t, 6*time.Second, ev.EstimatedRemaining)
	assert.Equal(t, "Tip A", ev.CurrentItem)

	empty := NewProgressEvent(StageFetching, 0, 0, "", time.Second)
	assert.Zero(t, empty.Percentage)
	assert.Zero(t, empty.EstimatedRemaining)
}
