package queue

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory tier of the job store: every live job by id.
// Only Create and Sweep mutate the map; job fields are owned by the job.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new pending job for url
func (s *Store) Create(url string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newJobID()
	for s.jobs[id] != nil {
		id = newJobID()
	}
	job := NewJob(id, url)
	s.jobs[id] = job
	return job
}

// Get returns the live job with id, if any
func (s *Store) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Active returns non-terminal jobs, newest first
func (s *Store) Active() []*Job {
	s.mu.RLock()
	active := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !job.Status().IsTerminal() {
			active = append(active, job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(active, func(i, k int) bool {
		return active[i].CreatedAt().After(active[k].CreatedAt())
	})
	return active
}

// IsActive reports whether id names a live, non-terminal job
func (s *Store) IsActive(id string) bool {
	job, ok := s.Get(id)
	return ok && !job.Status().IsTerminal()
}

// Sweep removes terminal jobs created more than maxAge before now.
// Non-terminal jobs are never removed, however old.
func (s *Store) Sweep(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt()) > maxAge && job.Status().IsTerminal() {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// put inserts a prepared job. Used by tests to control creation time.
func (s *Store) put(job *Job) {
	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
