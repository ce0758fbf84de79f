package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	id       string
	payloads [][]byte
	fail     error
	closed   bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSubscriber) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

func TestRegistry_AddRemoveCount(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.HasAny())

	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Count())
	assert.True(t, r.HasAny())

	r.Remove("a")
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_AddSameIDIsNotDuplicated(t *testing.T) {
	r := NewRegistry()
	a := &fakeSubscriber{id: "a"}
	r.Add(a)
	r.Add(a)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Add(&fakeSubscriber{id: "a"})

	r.Remove("a")
	assert.Equal(t, 0, r.Count())

	// Removing an already-absent subscriber must not panic or change count.
	assert.NotPanics(t, func() { r.Remove("a") })
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_SnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	r.Add(&fakeSubscriber{id: "a"})

	snap := r.Snapshot()
	r.Remove("a")

	// The snapshot taken before removal still holds the member.
	assert.Len(t, snap, 1)
	assert.Equal(t, 0, r.Count())
}
