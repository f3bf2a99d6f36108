package videos

import (
	"sort"
	"sync"
	"time"

	"github.com/sngdarren/mr-team/internal/apperr"
)

// Video points at a finished composite on disk.
type Video struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	JobID     string    `json:"job_id"`
	Segment   string    `json:"segment"`
	RemoteURL string    `json:"remote_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry maps video ids to their files. Each operation is atomic.
type Registry struct {
	mu     sync.RWMutex
	videos map[string]Video
}

func NewRegistry() *Registry {
	return &Registry{videos: make(map[string]Video)}
}

// Add registers a video once; a second Add with the same id fails.
func (r *Registry) Add(v Video) error {
	if v.ID == "" || v.Path == "" {
		return apperr.New(apperr.ErrInputValidation, "video id and path are required")
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.videos[v.ID]; exists {
		return apperr.New(apperr.ErrAlreadyExists, "video %s already registered", v.ID)
	}
	r.videos[v.ID] = v
	return nil
}

func (r *Registry) Get(id string) (Video, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[id]
	return v, ok
}

func (r *Registry) Exists(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// SetRemoteURL records where a mirrored copy of the video lives.
func (r *Registry) SetRemoteURL(id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "video %s not found", id)
	}
	v.RemoteURL = url
	r.videos[id] = v
	return nil
}

// Remove deletes the entry (not the file) and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return false
	}
	delete(r.videos, id)
	return true
}

// ByJob returns the job's videos, oldest first.
func (r *Registry) ByJob(jobID string) []Video {
	r.mu.RLock()
	var ret []Video
	for _, v := range r.videos {
		if v.JobID == jobID {
			ret = append(ret, v)
		}
	}
	r.mu.RUnlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}
