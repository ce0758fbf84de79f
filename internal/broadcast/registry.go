// Package broadcast ties the acquisition source to a dynamic set of
// subscribers: a registry of live connections and a fixed-cadence scheduler
// that analyses the latest samples and fans the result out without ever
// blocking on a slow consumer.
package broadcast

import "sync"

// Subscriber is an opaque send-capable handle for one connected consumer.
// Send must be non-blocking within its own bound and must fail once the
// underlying transport is closed.
type Subscriber interface {
	// ID uniquely identifies the connection for registry membership.
	ID() string

	// Send queues one encoded frame for delivery. It fails when the
	// transport is closed or the subscriber cannot keep up.
	Send(payload []byte) error

	// Close releases the transport. Safe to call more than once.
	Close()
}

// Registry tracks the live subscriber set. Membership changes are atomic
// with respect to Count and HasAny readers, and may happen concurrently
// with an in-flight fan-out.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscriber
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscriber)}
}

// Add registers a subscriber. Re-adding the same ID replaces the previous
// entry so a live connection never appears twice.
func (r *Registry) Add(sub Subscriber) {
	r.mu.Lock()
	r.subs[sub.ID()] = sub
	r.mu.Unlock()
}

// Remove unregisters a subscriber by ID. Removing an absent ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Count returns the current subscriber count.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// HasAny reports whether at least one subscriber is registered.
func (r *Registry) HasAny() bool {
	return r.Count() > 0
}

// Snapshot returns the current members for iteration without holding the
// registry lock across sends.
func (r *Registry) Snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}
