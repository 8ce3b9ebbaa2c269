// Package registry keeps the in-memory table of generation operations shared
// between the HTTP surface and the background orchestrator.
package registry

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"longvideo/internal/domain"
	"longvideo/internal/infra"
)

const (
	defaultRetention     = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Options configures a Registry.
type Options struct {
	// Retention is how long a finished operation stays visible after creation.
	Retention time.Duration
	// SweepInterval bounds how often MaybeSweep actually sweeps.
	SweepInterval time.Duration
	// RemoveFile deletes a backing artifact. Errors are logged.
	RemoveFile func(path string) error
	Now        func() time.Time
	Logger     *infra.Logger
}

// Registry is a concurrency-safe operation store. Records are handed out as
// deep copies; the only way to change one is Mutate.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*domain.Operation

	retention  time.Duration
	sweepEvery time.Duration
	remove     func(string) error
	now        func() time.Time
	logger     *infra.Logger

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// New constructs an empty Registry.
func New(opts Options) *Registry {
	r := &Registry{
		ops:        make(map[string]*domain.Operation),
		retention:  opts.Retention,
		sweepEvery: opts.SweepInterval,
		remove:     opts.RemoveFile,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if r.retention <= 0 {
		r.retention = defaultRetention
	}
	if r.sweepEvery <= 0 {
		r.sweepEvery = defaultSweepInterval
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		l := zerolog.New(io.Discard)
		r.logger = &l
	}
	r.lastSweep = r.now()
	return r
}

// Create stores op under a freshly generated id and returns the id.
func (r *Registry) Create(op domain.Operation) (string, error) {
	id := uuid.NewString()
	stored := op.Clone()
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	if stored.Status == "" {
		stored.Status = domain.StatusPending
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ops[id]; exists {
		return "", fmt.Errorf("registry: %w: %s", domain.ErrDuplicateOperation, id)
	}
	r.ops[id] = &stored
	return id, nil
}

// Get returns a snapshot of the operation with the given id.
func (r *Registry) Get(id string) (domain.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	if !ok {
		return domain.Operation{}, fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	return op.Clone(), nil
}

// Mutate applies fn to the stored record under the write lock. fn must not
// retain op beyond the call.
func (r *Registry) Mutate(id string, fn func(op *domain.Operation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[id]
	if !ok {
		return fmt.Errorf("operation %s: %w", id, domain.ErrNotFound)
	}
	fn(op)
	return nil
}

// List returns snapshots of all retained operations, newest first.
func (r *Registry) List() []domain.Operation {
	r.mu.RLock()
	out := make([]domain.Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of retained operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}

// Sweep evicts every terminal operation created before now-Retention and
// deletes its artifacts. Operations still being orchestrated are kept so the
// orchestrator never writes to an evicted record.
func (r *Registry) Sweep(now time.Time) []domain.Operation {
	cutoff := now.Add(-r.retention)

	r.mu.Lock()
	var removed []domain.Operation
	for id, op := range r.ops {
		if !op.Status.IsTerminal() || !op.CreatedAt.Before(cutoff) {
			continue
		}
		removed = append(removed, op.Clone())
		delete(r.ops, id)
	}
	r.mu.Unlock()

	r.sweepMu.Lock()
	r.lastSweep = now
	r.sweepMu.Unlock()

	for _, op := range removed {
		for _, path := range op.ArtifactPaths() {
			if r.remove == nil {
				break
			}
			if err := r.remove(path); err != nil {
				r.logger.Warn().Err(err).Str("operation_id", op.ID).Str("path", path).Msg("registry: remove artifact")
			}
		}
	}
	if len(removed) > 0 {
		r.logger.Info().Int("removed", len(removed)).Msg("registry: swept expired operations")
	}
	return removed
}

// MaybeSweep runs Sweep when at least SweepInterval has passed since the
// previous sweep. It reports whether a sweep happened.
func (r *Registry) MaybeSweep(now time.Time) bool {
	r.sweepMu.Lock()
	due := now.Sub(r.lastSweep) >= r.sweepEvery
	if due {
		r.lastSweep = now
	}
	r.sweepMu.Unlock()
	if !due {
		return false
	}
	r.Sweep(now)
	return true
}
