package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/wikirefs/internal/article"
	"github.com/google/uuid"
)

// JobStatus represents the state of a batch scan job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = "fetching"
	StatusScanning  JobStatus = "scanning"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks the scanning of a list of article titles.
type Job struct {
	mu sync.Mutex

	ID             string
	Titles         []string
	WithReferences bool

	Status JobStatus
	Phase  string

	Progress Progress
	Results  []TitleResult

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress tracks processing progress.
type Progress struct {
	TotalTitles     int      `json:"total_titles"`
	TitlesProcessed int      `json:"titles_processed"`
	Statements      int      `json:"statements"`
	Citations       int      `json:"citations"`
	Errors          []string `json:"errors"`
}

// TitleResult is the outcome of one title within a job. Report is nil when
// Error is set.
type TitleResult struct {
	Title       string          `json:"title"`
	RevID       int64           `json:"revid,omitempty"`
	Permalink   string          `json:"permalink,omitempty"`
	ContentHash string          `json:"content_hash,omitempty"`
	Report      *article.Report `json:"report,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewJob creates a queued job with a fresh random id.
func NewJob(titles []string, withReferences bool) *Job {
	now := time.Now()
	return &Job{
		ID:             uuid.NewString(),
		Titles:         titles,
		WithReferences: withReferences,
		Status:         StatusQueued,
		Phase:          "queued",
		Progress:       Progress{TotalTitles: len(titles)},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs that have not been touched within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.lastUpdate()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) lastUpdate() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error that is not tied to a single title.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Errors = append(j.Progress.Errors, err)
	j.UpdatedAt = time.Now()
}

// AddResult appends the outcome for one title and advances progress.
func (j *Job) AddResult(r TitleResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Results = append(j.Results, r)
	j.Progress.TitlesProcessed++
	if r.Error != "" {
		j.Progress.Errors = append(j.Progress.Errors, fmt.Sprintf("%s: %s", r.Title, r.Error))
	}
	if r.Report != nil {
		j.Progress.Statements += len(r.Report.Statements)
		j.Progress.Citations += r.Report.CitationCount()
	}
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string        `json:"job_id"`
	Status    JobStatus     `json:"status"`
	Phase     string        `json:"phase"`
	Titles    []string      `json:"titles"`
	Progress  Progress      `json:"progress"`
	Results   []TitleResult `json:"results"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	results := append([]TitleResult{}, j.Results...)
	progress := j.Progress
	progress.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Phase:     j.Phase,
		Titles:    append([]string{}, j.Titles...),
		Progress:  progress,
		Results:   results,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
