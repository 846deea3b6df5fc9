// Package registry maps opaque document handles to their immutable vector stores.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/internal/vector"
)

// HandlePrefix is prepended to every generated document handle.
const HandlePrefix = "doc_"

// ErrNotFound is returned when a handle is not registered.
var ErrNotFound = errors.New("document not found")

// Entry is one registered document. Fields are read-only after registration.
type Entry struct {
	Handle    string
	Store     *vector.Store
	Info      models.DocumentInfo
	CreatedAt time.Time

	seq        uint64
	lastAccess atomic.Int64
}

// LastAccess returns when the entry was registered or last looked up.
func (e *Entry) LastAccess() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

func (e *Entry) touch(t time.Time) {
	e.lastAccess.Store(t.UnixNano())
}

// Registry is safe for concurrent use. Lookups share a read lock and record
// access times atomically, so queries never serialize against each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	seq     uint64

	policy  Policy
	onEvict func(*Entry)
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithPolicy sets the eviction policy. The default is NoEviction.
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithOnEvict registers a callback invoked for every entry dropped by the policy.
func WithOnEvict(fn func(*Entry)) Option {
	return func(r *Registry) {
		r.onEvict = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*Entry),
		policy:  NoEviction{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a fully built vector store under a freshly generated handle.
// info.ID and info.CreatedAt are filled in on the returned entry.
func (r *Registry) Register(store *vector.Store, info models.DocumentInfo) *Entry {
	now := r.now()
	entry := &Entry{Store: store, CreatedAt: now}
	entry.touch(now)

	r.mu.Lock()
	handle := newHandle()
	for r.entries[handle] != nil {
		handle = newHandle()
	}
	entry.Handle = handle
	r.seq++
	entry.seq = r.seq
	info.ID = handle
	info.CreatedAt = now
	entry.Info = info
	r.entries[handle] = entry
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("Registered document",
			zap.String("handle", handle),
			zap.Int("chunks", store.Len()))
	}

	// Capacity limits apply immediately rather than at the next sweep,
	// but never to the entry being registered.
	r.sweep(handle)
	return entry
}

// Lookup returns the entry for handle, or ErrNotFound.
func (r *Registry) Lookup(handle string) (*Entry, error) {
	r.mu.RLock()
	entry, ok := r.entries[handle]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	entry.touch(r.now())
	return entry, nil
}

// Remove drops handle and reports whether it was registered.
// The eviction callback is not invoked.
func (r *Registry) Remove(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[handle]; !ok {
		return false
	}
	delete(r.entries, handle)
	return true
}

// List returns all entries ordered by registration time.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep applies the eviction policy and returns the handles it removed.
func (r *Registry) Sweep() []string {
	return r.sweep("")
}

// sweep evicts what the policy selects, except keep.
func (r *Registry) sweep(keep string) []string {
	r.mu.RLock()
	snapshot := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	victims := r.policy.Evict(snapshot, r.now())
	if len(victims) == 0 {
		return nil
	}

	evicted := make([]*Entry, 0, len(victims))
	r.mu.Lock()
	for _, h := range victims {
		if h == keep {
			continue
		}
		if e, ok := r.entries[h]; ok {
			delete(r.entries, h)
			evicted = append(evicted, e)
		}
	}
	r.mu.Unlock()

	handles := make([]string, 0, len(evicted))
	for _, e := range evicted {
		handles = append(handles, e.Handle)
		if r.logger != nil {
			r.logger.Debug("Evicted document", zap.String("handle", e.Handle))
		}
		if r.onEvict != nil {
			r.onEvict(e)
		}
	}
	return handles
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func newHandle() string {
	return HandlePrefix + uuid.NewString()
}
