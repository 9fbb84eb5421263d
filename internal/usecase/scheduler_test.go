package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/testutil"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPresetOnTick(t *testing.T) {
	docs := &testutil.Producer{For: domain.OutputDocument}
	f := newFixture(t, 5, nil, docs)
	driver := &manualDriver{}

	s := NewScheduler(driver, f.pipeline, PresetDocuments, 2, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	assert.Len(t, docs.Jobs(), 2)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerWithoutDriverIsNoop(t *testing.T) {
	s := NewScheduler(nil, nil, PresetEverything, 1, nil)
	assert.NoError(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}
