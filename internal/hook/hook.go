// Package hook is the extension point the host registers lifecycle listeners
// against. The host fires Awake and Start for replicated objects as they come
// alive; listeners capture state that only exists at runtime.
package hook

import (
	"fmt"
	"sync"

	"github.com/Alia5/syncbackend/internal/scenegraph"
)

// Lifecycle receives object lifecycle events.
type Lifecycle interface {
	Awake(o *scenegraph.Object)
	Start(o *scenegraph.Object)
}

// EventKind names a lifecycle event on the wire.
type EventKind string

const (
	EventAwake EventKind = "awake"
	EventStart EventKind = "start"
)

// Event is a lifecycle event as sent by a remote host.
type Event struct {
	Kind   EventKind          `json:"event"`
	Object *scenegraph.Object `json:"object"`
}

// Registry fans events out to every registered listener in registration
// order.
type Registry struct {
	mu    sync.RWMutex
	next  int
	hooks map[int]Lifecycle
	order []int
}

func NewRegistry() *Registry {
	return &Registry{hooks: make(map[int]Lifecycle)}
}

// Register adds l and returns the function that removes it again.
func (r *Registry) Register(l Lifecycle) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.hooks[id] = l
	r.order = append(r.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.hooks, id)
			for i, v := range r.order {
				if v == id {
					r.order = append(r.order[:i], r.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) snapshot() []Lifecycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Lifecycle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.hooks[id])
	}
	return out
}

func (r *Registry) Awake(o *scenegraph.Object) {
	for _, l := range r.snapshot() {
		l.Awake(o)
	}
}

func (r *Registry) Start(o *scenegraph.Object) {
	for _, l := range r.snapshot() {
		l.Start(o)
	}
}

// Dispatch delivers a remote event.
func (r *Registry) Dispatch(ev Event) error {
	if ev.Object == nil {
		return fmt.Errorf("%s event without object", ev.Kind)
	}
	switch ev.Kind {
	case EventAwake:
		r.Awake(ev.Object)
	case EventStart:
		r.Start(ev.Object)
	default:
		return fmt.Errorf("unknown event %q", ev.Kind)
	}
	return nil
}

// Play fires Awake then Start for every object of the walker's active scene,
// depth first, the way entering play mode would.
func Play(w scenegraph.Walker, l Lifecycle) error {
	roots, err := w.ActiveSceneRoots()
	if err != nil {
		return fmt.Errorf("play %s: %w", w.ActiveScene(), err)
	}
	var all []*scenegraph.Object
	var walk func(*scenegraph.Object)
	walk = func(o *scenegraph.Object) {
		all = append(all, o)
		for _, c := range w.Children(o) {
			walk(c)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	for _, o := range all {
		l.Awake(o)
	}
	for _, o := range all {
		l.Start(o)
	}
	return nil
}
