package correlation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

// Mode is how a correlation call is executed.
// Both modes run the same computation.
type Mode int

const (
	// ModeImmediate blocks the caller until results are ready.
	ModeImmediate Mode = iota
	// ModeDeferred returns a Job handle the caller polls or waits on.
	ModeDeferred
)

// String returns the mode name used in the HTTP API.
func (m Mode) String() string {
	if m == ModeDeferred {
		return "deferred"
	}
	return "immediate"
}

// ParseMode converts an API mode name into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "immediate":
		return ModeImmediate, true
	case "deferred", "background":
		return ModeDeferred, true
	}
	return ModeImmediate, false
}

// ModeFor returns the configured execution mode of a source.
func ModeFor(out config.Output) Mode {
	if out.BackgroundProcessing {
		return ModeDeferred
	}
	return ModeImmediate
}

// JobState is the lifecycle state of a deferred correlation.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ID         string     `json:"job_id"`
	Source     string     `json:"source"`
	State      JobState   `json:"status"`
	Error      string     `json:"error,omitempty"`
	Processed  int        `json:"activities_processed"`
	Total      int        `json:"activities_total"`
}

// Job is a deferred correlation run.
// A job created with compute_immediately=false stays pending until it is
// started, waited on or polled.
type Job struct {
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	ref        time.Time
	ctx        context.Context
	err        error
	engine     *Engine
	cancel     context.CancelFunc
	done       chan struct{}
	results    Results
	id         string
	state      JobState
	activities []models.Activity
	messages   []models.Message
	processed  int
	total      int
	startOnce  sync.Once
	mu         sync.RWMutex
}

// Defer creates a job for the same computation Correlate performs.
// The inputs are copied; ctx bounds the job's lifetime.
func (e *Engine) Defer(ctx context.Context, activities []models.Activity, messages []models.Message, ref time.Time) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &Job{
		id:         uuid.New().String(),
		engine:     e,
		activities: append([]models.Activity(nil), activities...),
		messages:   append([]models.Message(nil), messages...),
		ref:        ref,
		ctx:        jobCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      JobPending,
		total:      len(activities),
		createdAt:  time.Now(),
	}
	if e.source.Config.Output.ComputeImmediately {
		j.Start()
	}
	return j
}

// ID returns the job's unique identifier.
func (j *Job) ID() string {
	return j.id
}

// Start begins computation if it has not started yet.
func (j *Job) Start() {
	j.startOnce.Do(func() {
		j.mu.Lock()
		if j.state != JobPending {
			// Cancelled before it ever ran.
			j.mu.Unlock()
			return
		}
		j.state = JobRunning
		j.startedAt = time.Now()
		j.mu.Unlock()

		go j.run()
	})
}

func (j *Job) run() {
	results, err := j.engine.run(j.ctx, j.activities, j.messages, j.ref, j.setProgress)

	j.mu.Lock()
	j.finishedAt = time.Now()
	switch {
	case err == nil:
		j.state = JobDone
		j.results = results
		j.processed = j.total
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		j.state = JobCancelled
		j.err = err
	default:
		j.state = JobFailed
		j.err = err
	}
	state := j.state
	elapsed := j.finishedAt.Sub(j.startedAt)
	j.mu.Unlock()

	j.cancel()
	close(j.done)

	log.Info().
		Str("job", j.id).
		Str("source", j.engine.source.Name).
		Str("state", string(state)).
		Dur("elapsed", elapsed).
		Msg("Correlation job finished")
}

func (j *Job) setProgress(done, total int) {
	j.mu.Lock()
	j.processed = done
	j.total = total
	j.mu.Unlock()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait starts the job if needed and blocks until it finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (Results, error) {
	j.Start()
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a finished job. Results are nil unless the job is done.
func (j *Job) Result() (Results, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	switch j.state {
	case JobDone:
		return j.results, nil
	case JobPending, JobRunning:
		return nil, ErrJobNotFinished
	}
	return nil, j.err
}

// Report lays out a finished job's results. See BuildReport.
func (j *Job) Report() (*Report, error) {
	results, err := j.Result()
	if err != nil {
		return nil, err
	}
	return BuildReport(j.engine.source.Name, j.ref, j.activities, results), nil
}

// Status returns the job's current state and progress without starting it.
func (j *Job) Status() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	st := JobStatus{
		ID:        j.id,
		Source:    j.engine.source.Name,
		State:     j.state,
		Processed: j.processed,
		Total:     j.total,
		CreatedAt: j.createdAt,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		st.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		st.FinishedAt = &t
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

// Poll starts a pending job and returns its status.
func (j *Job) Poll() JobStatus {
	j.Start()
	return j.Status()
}

// Cancel stops the job. A running job discards its partial work;
// a pending job never starts.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.state == JobPending {
		j.state = JobCancelled
		j.err = context.Canceled
		j.finishedAt = time.Now()
		j.mu.Unlock()
		j.cancel()
		close(j.done)
		return
	}
	j.mu.Unlock()
	j.cancel()
}

// ErrJobNotFinished is returned by Result while a job is pending or running.
var ErrJobNotFinished = errors.New("correlation job has not finished")
