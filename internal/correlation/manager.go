package correlation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/pkg/models"
)

// JobManagerConfig contains configuration for the job manager.
type JobManagerConfig struct {
	// TTL is how long a finished job stays retrievable.
	TTL time.Duration
	// PruneInterval is how often finished jobs are pruned.
	PruneInterval time.Duration
	// MaxJobs caps retained jobs; the oldest finished jobs are dropped first.
	MaxJobs int
}

// DefaultJobManagerConfig returns the default job manager configuration.
func DefaultJobManagerConfig() JobManagerConfig {
	return JobManagerConfig{
		TTL:           30 * time.Minute,
		PruneInterval: time.Minute,
		MaxJobs:       1000,
	}
}

// JobManager tracks deferred correlation jobs by ID.
type JobManager struct {
	ctx    context.Context
	jobs   map[string]*Job
	cancel context.CancelFunc
	config JobManagerConfig
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewJobManager creates a job manager. Jobs it submits are cancelled by Stop.
func NewJobManager(config JobManagerConfig) *JobManager {
	defaults := DefaultJobManagerConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.PruneInterval <= 0 {
		config.PruneInterval = defaults.PruneInterval
	}
	if config.MaxJobs <= 0 {
		config.MaxJobs = defaults.MaxJobs
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		ctx:    ctx,
		cancel: cancel,
		config: config,
		jobs:   make(map[string]*Job),
	}
}

// Start begins the background pruning loop.
func (m *JobManager) Start() {
	m.wg.Add(1)
	go m.pruneLoop()
	log.Info().Dur("ttl", m.config.TTL).Msg("Job manager started")
}

// Stop cancels every job and stops the pruning loop.
func (m *JobManager) Stop() {
	m.cancel()
	m.wg.Wait()
	log.Info().Msg("Job manager stopped")
}

func (m *JobManager) pruneLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Prune(now); n > 0 {
				log.Debug().Int("pruned", n).Msg("Pruned finished correlation jobs")
			}
		}
	}
}

// Submit creates a deferred job on engine and registers it.
// The job outlives the caller's request; it ends with the manager or on Cancel.
func (m *JobManager) Submit(engine *Engine, activities []models.Activity, messages []models.Message, ref time.Time) *Job {
	job := engine.Defer(m.ctx, activities, messages, ref)

	m.mu.Lock()
	m.jobs[job.ID()] = job
	over := len(m.jobs) - m.config.MaxJobs
	m.mu.Unlock()

	if over > 0 {
		m.evictOldest(over)
	}
	return job
}

// Get returns a job by ID.
func (m *JobManager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Cancel cancels a job by ID. It reports whether the job exists.
func (m *JobManager) Cancel(id string) bool {
	job, ok := m.Get(id)
	if !ok {
		return false
	}
	job.Cancel()
	return true
}

// List returns the status of every tracked job, newest first.
func (m *JobManager) List() []JobStatus {
	m.mu.RLock()
	statuses := make([]JobStatus, 0, len(m.jobs))
	for _, job := range m.jobs {
		statuses = append(statuses, job.Status())
	}
	m.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].CreatedAt.After(statuses[j].CreatedAt)
	})
	return statuses
}

// Prune removes finished jobs older than the TTL. It returns how many were removed.
func (m *JobManager) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		st := job.Status()
		if st.State.Finished() && st.FinishedAt != nil && now.Sub(*st.FinishedAt) >= m.config.TTL {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// evictOldest drops up to n finished jobs, oldest first.
func (m *JobManager) evictOldest(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	finished := make([]JobStatus, 0, len(m.jobs))
	for _, job := range m.jobs {
		if st := job.Status(); st.State.Finished() {
			finished = append(finished, st)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})
	for i := 0; i < n && i < len(finished); i++ {
		delete(m.jobs, finished[i].ID)
	}
}
