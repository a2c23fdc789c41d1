package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/score"
)

// JobStatus represents the state of a conversion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusResolving  JobStatus = "resolving"
	StatusScoring    JobStatus = "scoring"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Error kinds for failures outside resolution.
const (
	KindExtraction = "extraction"
	KindQueueFull  = "queue_full"
)

// JobOptions are the per-upload conversion settings.
type JobOptions struct {
	Title    string         `json:"title,omitempty"`
	Category string         `json:"category,omitempty"`
	Output   string         `json:"-"`
	Relaxed  bool           `json:"relaxed,omitempty"`
	Limits   convert.Limits `json:"limits"`
}

// Job tracks the state of a single document conversion.
type Job struct {
	mu sync.Mutex

	ID       string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Phase    string     `json:"phase"`
	Filename string     `json:"filename"`
	Options  JobOptions `json:"options"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData  []byte
	report    *convert.Report
	errorKind string
	errorMsg  string
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename string, data []byte, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Options:     opts,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
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

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with a classified error.
func (j *Job) Fail(phase, kind, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Phase = phase
	j.errorKind = kind
	j.errorMsg = msg
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Complete stores the report and releases the upload.
func (j *Job) Complete(rep *convert.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusCompleted
	j.Phase = "done"
	j.report = rep
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Report returns the conversion report of a completed job, or nil.
func (j *Job) Report() *convert.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobError is the classified failure of a job.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase"`
	Filename    string         `json:"filename"`
	Title       string         `json:"title,omitempty"`
	Category    score.Category `json:"category,omitempty"`
	Total       *float64       `json:"total,omitempty"`
	Grade       string         `json:"grade,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	Error       *JobError      `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Options.Title,
		Category:    score.Category(j.Options.Category),
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.report != nil {
		total := j.report.Score.Total
		snap.Title = j.report.Title
		snap.Category = j.report.Category
		snap.Total = &total
		snap.Grade = j.report.Score.Grade
	}
	if j.Status == StatusFailed {
		snap.Error = &JobError{Kind: j.errorKind, Message: j.errorMsg}
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
