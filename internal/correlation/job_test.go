package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModeDeferred, ModeFor(config.Output{BackgroundProcessing: true}))
	assert.Equal(t, ModeImmediate, ModeFor(config.Output{}))

	m, ok := ParseMode("background")
	assert.True(t, ok)
	assert.Equal(t, ModeDeferred, m)
	assert.Equal(t, "deferred", m.String())

	_, ok = ParseMode("later")
	assert.False(t, ok)
}

func TestJob_DeferredMatchesImmediate(t *testing.T) {
	src := compileSource(t, config.EmailSourceConfig(), nil)
	engine := newTestEngine(t, src)

	acts := []models.Activity{problemSet3()}
	msgs := []models.Message{emailMessage("m1", "CS101 PS 3", "Due Mar 16")}

	want, err := engine.Correlate(context.Background(), acts, msgs, testRef)
	require.NoError(t, err)

	job := engine.Defer(context.Background(), acts, msgs, testRef)
	got, err := job.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scoreTable(want), scoreTable(got))
	st := job.Status()
	assert.Equal(t, JobDone, st.State)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 1, st.Total)
	assert.NotNil(t, st.FinishedAt)
	assert.NotEmpty(t, job.ID())

	report, err := job.Report()
	require.NoError(t, err)
	assert.Equal(t, src.Name, report.Source)
	assert.Equal(t, testRef, report.ReferenceDate)
	assert.Equal(t, Summarize(got), report.Summary)
}

func TestJob_LazyStart(t *testing.T) {
	src := compileSource(t, config.EmailSourceConfig(), func(c *config.SourceConfig) {
		c.Output.ComputeImmediately = false
	})
	engine := newTestEngine(t, src)

	job := engine.Defer(context.Background(), []models.Activity{problemSet3()}, nil, testRef)

	assert.Equal(t, JobPending, job.Status().State)
	_, err := job.Result()
	assert.ErrorIs(t, err, ErrJobNotFinished)

	select {
	case <-job.Done():
		t.Fatal("pending job must not run before it is started")
	case <-time.After(20 * time.Millisecond):
	}

	job.Poll()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish after poll")
	}
	results, err := job.Result()
	require.NoError(t, err)
	assert.Contains(t, results, "ps3")
}

func TestJob_CancelPending(t *testing.T) {
	src := compileSource(t, config.EmailSourceConfig(), func(c *config.SourceConfig) {
		c.Output.ComputeImmediately = false
	})
	engine := newTestEngine(t, src)

	job := engine.Defer(context.Background(), []models.Activity{problemSet3()}, nil, testRef)
	job.Cancel()
	job.Start()

	<-job.Done()
	assert.Equal(t, JobCancelled, job.Status().State)
	results, err := job.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)

	job.Cancel() // idempotent
}

func TestJob_ParentContextCancelled(t *testing.T) {
	src := compileSource(t, config.EmailSourceConfig(), func(c *config.SourceConfig) {
		c.Output.ComputeImmediately = false
	})
	engine := newTestEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	job := engine.Defer(ctx, []models.Activity{problemSet3()}, nil, testRef)
	cancel()

	results, err := job.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
	assert.Equal(t, JobCancelled, job.Status().State)
	assert.NotEmpty(t, job.Status().Error)
}
