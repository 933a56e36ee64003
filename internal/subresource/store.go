// Package subresource keeps, per specialization kind, the record attached to
// each visit. A visit id maps to a record, to nil when the visit is known to
// have none, or is absent when it was never fetched.
package subresource

import (
	"context"
	"fmt"
	"sync"

	"hospops/internal/apperr"
	"hospops/internal/effect"
	"hospops/internal/models"

	"github.com/rs/zerolog"
)

// Backend is the by-visit contract of one specialization kind.
type Backend interface {
	FetchByVisit(ctx context.Context, visitID int64) (models.Specialization, error)
	SaveByVisit(ctx context.Context, visitID int64, rec models.Specialization) (models.Specialization, error)
	DeleteByVisit(ctx context.Context, visitID int64) error
}

// Op names the last operation on a key.
type Op string

const (
	OpFetch  Op = "fetch"
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// OpStatus holds the transient flags of one (kind, visit) key.
type OpStatus struct {
	Loading bool
	Op      Op
	Err     error
}

type key struct {
	kind    models.Kind
	visitID int64
}

func (k key) slot() string {
	return fmt.Sprintf("subresource:%s:%d", k.kind, k.visitID)
}

// Listener is told about every change of a key's data or flags.
type Listener func(kind models.Kind, visitID int64)

// Store is safe for concurrent use. Operations on the same key are
// take-latest; operations on different keys never share flags.
type Store struct {
	backends map[models.Kind]Backend
	runner   *effect.Runner
	logger   *zerolog.Logger

	mu        sync.RWMutex
	data      map[models.Kind]map[int64]models.Specialization
	status    map[key]OpStatus
	listeners []Listener
}

func New(backends map[models.Kind]Backend, logger *zerolog.Logger) *Store {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &Store{
		backends: backends,
		runner:   effect.NewRunner(),
		logger:   logger,
		data:     make(map[models.Kind]map[int64]models.Specialization),
		status:   make(map[key]OpStatus),
	}
	for kind := range backends {
		s.data[kind] = make(map[int64]models.Specialization)
	}
	return s
}

// OnChange registers l for change notifications.
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Lookup returns the record of visitID. known is false when the key was
// never fetched; a known key with a nil record means the visit has none.
func (s *Store) Lookup(kind models.Kind, visitID int64) (rec models.Specialization, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, known = s.data[kind][visitID]
	return rec, known
}

// Status returns the transient flags of the key.
func (s *Store) Status(kind models.Kind, visitID int64) OpStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[key{kind, visitID}]
}

// Keys lists the visit ids known for kind.
func (s *Store) Keys(kind models.Kind) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.data[kind]))
	for id := range s.data[kind] {
		ids = append(ids, id)
	}
	return ids
}

// Fetch loads the record of visitID. On failure only the key's error is set
// and any data already held for it is kept.
func (s *Store) Fetch(ctx context.Context, kind models.Kind, visitID int64) *effect.Task {
	return s.run(ctx, key{kind, visitID}, OpFetch, func(ctx context.Context, b Backend) (models.Specialization, error) {
		return b.FetchByVisit(ctx, visitID)
	})
}

// Save upserts rec for visitID. The stored value is the server's response.
func (s *Store) Save(ctx context.Context, kind models.Kind, visitID int64, rec models.Specialization) *effect.Task {
	if rec != nil && rec.Kind() != kind {
		err := apperr.Invalid("kind", "%s record cannot be saved as %s", rec.Kind(), kind)
		s.setStatus(key{kind, visitID}, OpStatus{Op: OpSave, Err: err})
		return effect.Done(err)
	}
	return s.run(ctx, key{kind, visitID}, OpSave, func(ctx context.Context, b Backend) (models.Specialization, error) {
		return b.SaveByVisit(ctx, visitID, rec)
	})
}

// Delete removes the record of visitID. The key stays with a nil value so a
// deleted record is distinguishable from one never fetched.
func (s *Store) Delete(ctx context.Context, kind models.Kind, visitID int64) *effect.Task {
	return s.run(ctx, key{kind, visitID}, OpDelete, func(ctx context.Context, b Backend) (models.Specialization, error) {
		return nil, b.DeleteByVisit(ctx, visitID)
	})
}

// Invalidate forgets the key so the next Lookup reports it unknown.
func (s *Store) Invalidate(kind models.Kind, visitID int64) {
	s.runner.Cancel(key{kind, visitID}.slot())
	s.mu.Lock()
	delete(s.data[kind], visitID)
	delete(s.status, key{kind, visitID})
	s.mu.Unlock()
	s.notify(kind, visitID)
}

// Refresh re-fetches visitID if it is already known.
func (s *Store) Refresh(ctx context.Context, kind models.Kind, visitID int64) *effect.Task {
	if _, known := s.Lookup(kind, visitID); !known {
		return effect.Done(nil)
	}
	return s.Fetch(ctx, kind, visitID)
}

type call func(ctx context.Context, b Backend) (models.Specialization, error)

func (s *Store) run(ctx context.Context, k key, op Op, do call) *effect.Task {
	b, ok := s.backends[k.kind]
	if !ok {
		return effect.Done(apperr.Invalid("kind", "unknown specialization %q", k.kind))
	}
	if k.visitID <= 0 {
		return effect.Done(apperr.Invalid("visit_id", "is required"))
	}

	s.setStatus(k, OpStatus{Loading: true, Op: op})
	log := s.logger.With().Str("kind", string(k.kind)).Int64("visit_id", k.visitID).Str("op", string(op)).Logger()

	return s.runner.Go(ctx, k.slot(), func(ctx context.Context) (effect.Step, error) {
		rec, err := do(ctx, b)
		return effect.Step{
			Apply: func() {
				s.mu.Lock()
				if err == nil {
					s.data[k.kind][k.visitID] = rec
				}
				s.status[k] = OpStatus{Op: op, Err: err}
				s.mu.Unlock()
				if err != nil {
					log.Warn().Err(err).Msg("sub-resource operation failed")
				}
			},
			Then: func() { s.notify(k.kind, k.visitID) },
		}, err
	})
}

func (s *Store) setStatus(k key, st OpStatus) {
	s.mu.Lock()
	s.status[k] = st
	s.mu.Unlock()
	s.notify(k.kind, k.visitID)
}

func (s *Store) notify(kind models.Kind, visitID int64) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		l(kind, visitID)
	}
}
