package mcp

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/web-crawler/pkg/crawler"
)

// JobStatus represents the current state of a crawl job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsActive reports whether a job with this status has not finished yet
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background crawl job
type Job struct {
	ID              string         `json:"id"`
	Seed            string         `json:"seed"`
	Depth           int            `json:"depth"`
	Status          JobStatus      `json:"status"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at,omitempty"`
	Downloaded      int            `json:"downloaded"`
	Errors          int            `json:"errors"`
	ErrorCategories map[string]int `json:"error_categories,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`

	result *crawler.Result
}

// Result returns the crawl result of a completed job, nil otherwise
func (j Job) Result() *crawler.Result { return j.result }

// JobManager manages background crawl jobs.
// Getters return copies so callers never race with the job's runner.
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	bySeed map[string]string // seed -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		bySeed: make(map[string]string),
	}
}

// CreateJob creates a new job for a seed. If a job for the same seed is still active,
// that job is returned instead and created is false.
func (m *JobManager) CreateJob(seed string, depth int) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.bySeed[seed]; exists {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.IsActive() {
			return *existing, false
		}
	}

	newJob := &Job{
		ID:        uuid.NewString(),
		Seed:      seed,
		Depth:     depth,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	m.jobs[newJob.ID] = newJob
	m.bySeed[seed] = newJob.ID
	return *newJob, true
}

// GetJob retrieves a job by ID
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// IsRunning checks if a job is currently active for a seed
func (m *JobManager) IsRunning(seed string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bySeed[seed]; exists {
		job := m.jobs[jobID]
		return job != nil && job.Status.IsActive()
	}
	return false
}

// MarkRunning moves a pending job to running
func (m *JobManager) MarkRunning(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists && job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Complete records the result of a finished crawl
func (m *JobManager) Complete(jobID string, result *crawler.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	job.Status = JobStatusCompleted
	job.CompletedAt = time.Now()
	job.result = result
	job.Downloaded = len(result.Downloaded)
	job.Errors = len(result.Errors)
	job.ErrorCategories = result.ErrorCategories()
	delete(m.bySeed, job.Seed)
}

// Fail records a crawl that could not run
func (m *JobManager) Fail(jobID string, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.Status = JobStatusFailed
		job.CompletedAt = time.Now()
		job.ErrorMessage = errorMsg
		delete(m.bySeed, job.Seed)
	}
}

// ListJobs returns all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	slices.SortFunc(jobs, func(a, b Job) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return jobs
}
