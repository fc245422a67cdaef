// Package server runs optimization jobs behind an HTTP API with SSE progress
// streaming, live control updates and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cwbudde/evotsp/internal/opt"
	"github.com/cwbudde/evotsp/internal/solve"
	"github.com/cwbudde/evotsp/internal/store"
	"github.com/google/uuid"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Finished reports whether the job can no longer change.
func (s JobState) Finished() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is an alias to avoid duplication with store.JobConfig
type JobConfig = store.JobConfig

// Job represents an optimization job
type Job struct {
	ID            string     `json:"id"`
	State         JobState   `json:"state"`
	Config        JobConfig  `json:"config"`
	BestOrder     []int      `json:"bestOrder,omitempty"`
	BestLength    float64    `json:"bestLength"`
	InitialLength float64    `json:"initialLength"`
	Iterations    int        `json:"iterations"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Error         string     `json:"error,omitempty"`
	ResumedFrom   string     `json:"resumedFrom,omitempty"`
	Converged     bool       `json:"converged,omitempty"`

	// Live engine state from the latest progress report.
	Params      *opt.GAParams `json:"params,omitempty"`
	Stats       *opt.Stats    `json:"stats,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`

	controls *solve.Controls
	cancel   context.CancelFunc
}

// snapshot copies the job so callers can read it without holding the lock.
func (j *Job) snapshot() *Job {
	c := *j
	c.BestOrder = append([]int(nil), j.BestOrder...)
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	if j.Params != nil {
		p := *j.Params
		c.Params = &p
	}
	if j.Stats != nil {
		s := *j.Stats
		c.Stats = &s
	}
	return &c
}

// Elapsed is the wall time the job has been (or was) running.
func (j *Job) Elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
	metrics     *Metrics
}

// NewJobManager creates a new JobManager. metrics may be nil.
func NewJobManager(metrics *Metrics) *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
		metrics:     metrics,
	}
}

// CreateJob registers a pending job with its own control queue.
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		controls:  solve.NewControls(),
	}

	jm.jobs[job.ID] = job
	jm.metrics.jobCreated()
	return job.snapshot()
}

// GetJob returns a copy of the job with the given ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// ListJobs returns copies of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns copies of all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}

// Controls returns the control queue of a job.
func (jm *JobManager) Controls(id string) (*solve.Controls, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.controls, true
}

// setCancel records how to stop a running job.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.UpdateJob(id, func(j *Job) {
		j.cancel = cancel
	})
}

// CancelJob stops a pending or running job. Finished jobs are left alone.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.RLock()
	job, exists := jm.jobs[id]
	var cancel context.CancelFunc
	var state JobState
	if exists {
		cancel, state = job.cancel, job.State
	}
	jm.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if state.Finished() {
		return fmt.Errorf("job %s already %s", id, state)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// CancelAll stops every running job, used on shutdown.
func (jm *JobManager) CancelAll() {
	for _, job := range jm.GetRunningJobs() {
		jm.CancelJob(job.ID)
	}
}
