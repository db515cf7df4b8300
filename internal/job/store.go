package job

import (
	"sync"

	"github.com/whatsy12/bitcoinminer/internal/fault"
)

// Snapshot is one consistent view of the store.
type Snapshot struct {
	Template   *Template
	Generation uint64
}

// TemplateStore holds the current template. Replace is the only way to
// change it, and readers always see a whole template.
type TemplateStore struct {
	mu         sync.RWMutex
	current    *Template
	generation uint64
	changed    chan struct{}
}

// NewTemplateStore returns an empty store.
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{changed: make(chan struct{})}
}

// Read returns the current template, or fault.ErrUninitializedTemplate before
// the first Replace.
func (s *TemplateStore) Read() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, fault.ErrUninitializedTemplate
	}
	return Snapshot{Template: s.current, Generation: s.generation}, nil
}

// Replace installs t and returns its generation. Waiters on Changed are woken.
func (s *TemplateStore) Replace(t *Template) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	s.generation++
	close(s.changed)
	s.changed = make(chan struct{})
	return s.generation
}

// Changed returns a channel closed by the next Replace.
func (s *TemplateStore) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Generation returns the number of templates installed so far.
func (s *TemplateStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
