package chat

import (
	"sync"

	"github.com/minouverse/minouchat/internal/model"
)

// PendingRegistry tracks in-flight sends by tempID. Claim is the
// serialization point for the channel-vs-HTTP confirmation race: whichever
// signal claims first performs the state transition, every later signal for
// the same tempID finds nothing and is a guaranteed no-op.
type PendingRegistry struct {
	mu      sync.Mutex
	entries map[string]*model.Message
}

// NewPendingRegistry creates an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{entries: make(map[string]*model.Message)}
}

// Add registers an in-flight send.
func (r *PendingRegistry) Add(tempID string, m *model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[tempID] = m
}

// Claim atomically removes and returns the entry for tempID. The second
// claimer for the same tempID gets ok=false.
func (r *PendingRegistry) Claim(tempID string) (*model.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[tempID]
	if ok {
		delete(r.entries, tempID)
	}
	return m, ok
}

// Has reports whether tempID is still in flight, without claiming it.
func (r *PendingRegistry) Has(tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[tempID]
	return ok
}

// Len returns the number of in-flight sends.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every entry. Used on conversation switch so confirmations for
// the old conversation land as unknown and are discarded.
func (r *PendingRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*model.Message)
}
