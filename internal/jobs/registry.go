package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/sngdarren/mr-team/internal/apperr"
)

// Registry holds every job known to the process. Each operation is atomic.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create inserts a new job in the processing state.
func (r *Registry) Create(id string, payload Payload) (*Job, error) {
	if id == "" {
		return nil, apperr.New(apperr.ErrInputValidation, "job id is empty")
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[id]; exists {
		return nil, apperr.New(apperr.ErrAlreadyExists, "job %s already exists", id)
	}
	job := &Job{
		ID:        id,
		Status:    StatusProcessing,
		Videos:    []string{},
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = job
	return cloneJob(job), nil
}

func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

func (r *Registry) Status(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return "", false
	}
	return job.Status, true
}

// Videos returns a copy of the job's video ids in append order.
func (r *Registry) Videos(id string) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return append([]string{}, job.Videos...), true
}

// List returns all jobs, oldest first.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	ret := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		ret = append(ret, cloneJob(job))
	}
	r.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID < ret[j].ID
		}
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

// AddVideo appends a finished video to a job that is still processing.
func (r *Registry) AddVideo(jobID, videoID string) error {
	return r.update(jobID, func(job *Job) error {
		if job.Status.Terminal() {
			return apperr.New(apperr.ErrConflict, "job %s is %s, cannot add video", jobID, job.Status)
		}
		job.Videos = append(job.Videos, videoID)
		return nil
	})
}

// RecordSegment stores a segment's outcome; a failed segment flags the job as partially failed.
func (r *Registry) RecordSegment(jobID string, outcome SegmentOutcome) error {
	return r.update(jobID, func(job *Job) error {
		if job.Status.Terminal() {
			return apperr.New(apperr.ErrConflict, "job %s is %s, cannot record segment", jobID, job.Status)
		}
		job.Segments = append(job.Segments, outcome)
		if !outcome.Succeeded() {
			job.PartialFailure = true
		}
		return nil
	})
}

// MarkDone moves a processing job to done.
func (r *Registry) MarkDone(id string) error {
	return r.update(id, func(job *Job) error {
		if job.Status.Terminal() {
			return apperr.New(apperr.ErrConflict, "job %s is already %s", id, job.Status)
		}
		job.Status = StatusDone
		job.Error = ""
		return nil
	})
}

// MarkFailed moves a processing job to failed and keeps reason as its error.
func (r *Registry) MarkFailed(id string, reason error) error {
	return r.update(id, func(job *Job) error {
		if job.Status.Terminal() {
			return apperr.New(apperr.ErrConflict, "job %s is already %s", id, job.Status)
		}
		job.Status = StatusFailed
		if reason != nil {
			job.Error = reason.Error()
		}
		return nil
	})
}

// Remove deletes a job and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// TerminalBefore lists finished jobs last updated before cutoff.
func (r *Registry) TerminalBefore(cutoff time.Time) []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []*Job
	for _, job := range r.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			ret = append(ret, cloneJob(job))
		}
	}
	return ret
}

func (r *Registry) update(id string, fn func(job *Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "job %s not found", id)
	}
	if err := fn(job); err != nil {
		return err
	}
	job.UpdatedAt = r.now()
	return nil
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Videos = append([]string{}, job.Videos...)
	tmp.Segments = append([]SegmentOutcome(nil), job.Segments...)
	return &tmp
}
