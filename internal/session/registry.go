package session

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Factory builds the manager for tab session sid opened on device deviceID.
type Factory func(sid, deviceID string) *Manager

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Factory Factory
	// IdleTTL is how long a tab may go unseen before its manager is dropped.
	IdleTTL time.Duration
	// EvictSchedule is a cron spec, for example "@every 1m".
	EvictSchedule string
	// OnCreate and OnEvict run outside the registry lock, for every new and
	// every dropped session id.
	OnCreate func(sid string)
	OnEvict  func(sid string)
	Logger   *zap.Logger
	Now      func() time.Time
}

type entry struct {
	manager  *Manager
	lastSeen time.Time
}

// Registry holds one Manager per live tab session.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	factory  Factory
	ttl      time.Duration
	schedule string
	onCreate func(sid string)
	onEvict  func(sid string)
	now      func() time.Time
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewRegistry creates an empty registry. Call Start to run idle eviction.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		factory:  opts.Factory,
		ttl:      opts.IdleTTL,
		schedule: opts.EvictSchedule,
		onCreate: opts.OnCreate,
		onEvict:  opts.OnEvict,
		now:      opts.Now,
		logger:   opts.Logger,
		cron:     cron.New(),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.schedule == "" {
		r.schedule = "@every 1m"
	}
	return r
}

// Get returns the initialized manager for sid, creating it on first use.
// deviceID only matters on creation.
func (r *Registry) Get(ctx context.Context, sid, deviceID string) *Manager {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if !ok {
		e = &entry{manager: r.factory(sid, deviceID)}
		r.entries[sid] = e
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	if !ok && r.onCreate != nil {
		r.onCreate(sid)
	}
	e.manager.Initialize(ctx)
	return e.manager
}

// Lookup returns the manager for sid without creating or touching it.
func (r *Registry) Lookup(sid string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, false
	}
	return e.manager, true
}

// Forget drops the manager for sid. Storage is left alone.
func (r *Registry) Forget(sid string) {
	r.mu.Lock()
	_, ok := r.entries[sid]
	delete(r.entries, sid)
	r.mu.Unlock()

	if ok && r.onEvict != nil {
		r.onEvict(sid)
	}
}

// Len reports the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Evict drops managers idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Evict() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var dropped []string
	for sid, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, sid)
			dropped = append(dropped, sid)
		}
	}
	remaining := len(r.entries)
	r.mu.Unlock()

	if len(dropped) > 0 {
		r.logger.Debug("evicted idle sessions", zap.Int("count", len(dropped)), zap.Int("remaining", remaining))
	}
	if r.onEvict != nil {
		for _, sid := range dropped {
			r.onEvict(sid)
		}
	}
	return len(dropped)
}

// Start schedules idle eviction.
func (r *Registry) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.Evict() }); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running eviction to finish.
func (r *Registry) Stop() {
	<-r.cron.Stop().Done()
}
