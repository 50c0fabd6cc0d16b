package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a registry record for a public domain.
type Entry struct {
	ID           string
	Tag          string
	Domain       Domain
	RegisteredAt time.Time
}

// Registry is a tag-keyed, index-ordered domain lookup. Independently
// constructed subsystems use it to find each other without explicit wiring:
// a GUI layer locating the active audio domain, for example.
//
// Entries are added by domains opting in via Add and stay until explicitly
// removed; domains that register themselves should Remove themselves during
// cleanup.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers d under tag and returns the created entry.
func (r *Registry) Add(tag string, d Domain) Entry {
	entry := Entry{
		ID:           uuid.NewString(),
		Tag:          tag,
		Domain:       d,
		RegisteredAt: time.Now(),
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return entry
}

// Remove deletes every entry referring to d and reports whether any was
// found.
func (r *Registry) Remove(d Domain) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Domain == d {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return found
}

// Lookup returns the index-th domain registered under tag, in registration
// order, or nil if absent.
func (r *Registry) Lookup(tag string, index int) Domain {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Tag != tag {
			continue
		}
		if n == index {
			return e.Domain
		}
		n++
	}
	return nil
}

// Entries returns a copy of all registry entries.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry{}, r.entries...)
}

// =============================================================================
// Process-wide default registry
// =============================================================================

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry. Components that want an
// isolated lookup scope construct their own Registry and pass it explicitly.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// AddPublicDomain registers d under tag in the process-wide registry.
func AddPublicDomain(tag string, d Domain) Entry {
	return defaultRegistry.Add(tag, d)
}

// GetDomain looks up the index-th domain registered under tag in the
// process-wide registry; nil if absent.
func GetDomain(tag string, index int) Domain {
	return defaultRegistry.Lookup(tag, index)
}
