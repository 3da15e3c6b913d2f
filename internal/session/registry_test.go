package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/courier-portal/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(clock *fakeClock, built *int) *Registry {
	return NewRegistry(RegistryOptions{
		Factory: func(sid, _ string) *Manager {
			*built++
			return NewManager(Options{ID: sid, Store: storage.NewMemoryStore(nil)})
		},
		IdleTTL: 10 * time.Minute,
		Now:     clock.Now,
	})
}

func TestRegistry_GetReusesManager(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var built int
	r := newTestRegistry(clock, &built)

	a := r.Get(context.Background(), "tab-a", "device")
	b := r.Get(context.Background(), "tab-a", "device")
	c := r.Get(context.Background(), "tab-b", "device")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, built)
	assert.Equal(t, 2, r.Len())
	assert.False(t, a.State().Loading)
	assert.Equal(t, "tab-a", a.ID())
}

func TestRegistry_EvictsIdleManagers(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var built int
	r := newTestRegistry(clock, &built)

	r.Get(context.Background(), "idle", "device")
	clock.Advance(6 * time.Minute)
	r.Get(context.Background(), "busy", "device")
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, r.Evict())
	_, ok := r.Lookup("idle")
	assert.False(t, ok)
	_, ok = r.Lookup("busy")
	assert.True(t, ok)
}

func TestRegistry_Forget(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var built int
	r := newTestRegistry(clock, &built)

	r.Get(context.Background(), "tab", "device")
	r.Forget("tab")

	assert.Zero(t, r.Len())
}

func TestRegistry_Hooks(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var created, evicted []string
	r := NewRegistry(RegistryOptions{
		Factory:  func(sid, _ string) *Manager { return NewManager(Options{ID: sid, Store: storage.NewMemoryStore(nil)}) },
		IdleTTL:  time.Minute,
		OnCreate: func(sid string) { created = append(created, sid) },
		OnEvict:  func(sid string) { evicted = append(evicted, sid) },
		Now:      clock.Now,
	})

	r.Get(context.Background(), "old", "device")
	clock.Advance(2 * time.Minute)
	r.Get(context.Background(), "new", "device")
	r.Get(context.Background(), "new", "device")
	r.Evict()
	r.Forget("new")
	r.Forget("never-existed")

	assert.Equal(t, []string{"old", "new"}, created)
	assert.Equal(t, []string{"old", "new"}, evicted)
}

func TestRegistry_StartRejectsBadSchedule(t *testing.T) {
	r := NewRegistry(RegistryOptions{EvictSchedule: "every now and then"})
	require.Error(t, r.Start())
}

func TestRegistry_StartStop(t *testing.T) {
	r := NewRegistry(RegistryOptions{EvictSchedule: "@every 1h", IdleTTL: time.Minute})
	require.NoError(t, r.Start())
	r.Stop()
}
