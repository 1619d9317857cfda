package scene

import (
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Summary describes an active scene for listings.
type Summary struct {
	ID     string `json:"id"`
	Layers int    `json:"layers"`
}

// Registry tracks the mounted editors served over the API.
type Registry struct {
	mu      sync.RWMutex
	editors map[string]*Editor
	opts    []Option
}

// NewRegistry creates an empty registry. opts are applied to every editor
// it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		editors: make(map[string]*Editor),
		opts:    opts,
	}
}

// Create mounts a new editor under a fresh ULID.
func (r *Registry) Create() *Editor {
	id := ulid.Make().String()
	opts := append(append([]Option{}, r.opts...), withID(id))
	e := NewEditor(opts...)
	e.Mount()

	r.mu.Lock()
	r.editors[id] = e
	r.mu.Unlock()

	logrus.WithField("scene_id", id).Info("Scene created")
	return e
}

func (r *Registry) Get(id string) (*Editor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.editors[id]
	return e, ok
}

// Remove unmounts and forgets a scene.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.editors[id]
	delete(r.editors, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.Unmount()
	logrus.WithField("scene_id", id).Info("Scene removed")
	return true
}

// List returns summaries ordered by ID, which is creation order for ULIDs.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	editors := make([]*Editor, 0, len(r.editors))
	for _, e := range r.editors {
		editors = append(editors, e)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(editors))
	for _, e := range editors {
		out = append(out, Summary{ID: e.ID(), Layers: e.Len()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close unmounts every editor.
func (r *Registry) Close() {
	r.mu.Lock()
	editors := r.editors
	r.editors = make(map[string]*Editor)
	r.mu.Unlock()

	for _, e := range editors {
		e.Unmount()
	}
}
