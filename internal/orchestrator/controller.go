// Package orchestrator sequences user intents against the repositories:
// take-latest per action, refresh after mutations, failures kept in state
// and handed to a Notifier.
package orchestrator

import (
	"context"
	"sync"

	"hospops/internal/apperr"
	"hospops/internal/effect"
	"hospops/internal/events"
	"hospops/internal/notify"
	"hospops/internal/repository"

	"github.com/rs/zerolog"
)

// Action is a controller action; every action has its own slot.
type Action string

const (
	FetchList    Action = "fetchList"
	FetchOne     Action = "fetchOne"
	Search       Action = "search"
	Create       Action = "create"
	Update       Action = "update"
	Delete       Action = "delete"
	ChangeStatus Action = "changeStatus"
)

func (a Action) mutates() bool {
	switch a {
	case Create, Update, Delete, ChangeStatus:
		return true
	}
	return false
}

// Record is anything with a numeric key.
type Record interface {
	Key() int64
}

// Repository is what a controller needs from the repository layer.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Search(ctx context.Context, q repository.Query) ([]T, error)
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id int64, rec T) (T, error)
	Delete(ctx context.Context, id int64) error
}

// State is a snapshot of a controller.
type State[T any] struct {
	Items    []T
	Selected *T
	Query    repository.Query
	// Source is FetchList or Search, whichever completed last.
	Source Action
	// Fetched is set once a list or search result was applied.
	Fetched bool
	Loading map[Action]bool
	Errors  map[Action]error
}

// Result is the outcome of the last list or search. An empty Items with a nil
// error means nothing matched; on failure Items still holds the previous
// result.
func (s State[T]) Result() ([]T, error) {
	return s.Items, s.Errors[s.Source]
}

func (s State[T]) clone() State[T] {
	out := State[T]{
		Items:   append([]T(nil), s.Items...),
		Query:   s.Query,
		Source:  s.Source,
		Fetched: s.Fetched,
		Loading: make(map[Action]bool, len(s.Loading)),
		Errors:  make(map[Action]error, len(s.Errors)),
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	for k, v := range s.Loading {
		out.Loading[k] = v
	}
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	return out
}

// Deps are shared by every controller of a hub.
type Deps struct {
	Bus      *events.EventBus
	Notifier notify.Notifier
	Logger   *zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Bus == nil {
		d.Bus = events.NewEventBus(d.Logger)
	}
	if d.Logger == nil {
		nop := zerolog.Nop()
		d.Logger = &nop
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLog(d.Logger)
	}
	return d
}

// Controller runs the actions of one entity.
type Controller[T Record] struct {
	entity   string
	repo     Repository[T]
	runner   *effect.Runner
	bus      *events.EventBus
	notifier notify.Notifier
	logger   *zerolog.Logger

	mu    sync.RWMutex
	state State[T]
	subs  []func(State[T])
}

func NewController[T Record](entity string, repo Repository[T], deps Deps) *Controller[T] {
	deps = deps.withDefaults()
	l := deps.Logger.With().Str("entity", entity).Logger()
	return &Controller[T]{
		entity:   entity,
		repo:     repo,
		runner:   effect.NewRunner(),
		bus:      deps.Bus,
		notifier: deps.Notifier,
		logger:   &l,
		state: State[T]{
			Loading: make(map[Action]bool),
			Errors:  make(map[Action]error),
		},
	}
}

func (c *Controller[T]) Entity() string { return c.entity }

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller[T]) Subscribe(fn func(State[T])) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// mutate applies fn and returns the subscriber notification, which callers
// run outside any slot lock.
func (c *Controller[T]) mutate(fn func(s *State[T])) (publish func()) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.state.clone()
	subs := append(([]func(State[T]))(nil), c.subs...)
	c.mu.Unlock()
	return func() {
		for _, sub := range subs {
			sub(snap)
		}
	}
}

func (c *Controller[T]) update(fn func(s *State[T])) { c.mutate(fn)() }

func (c *Controller[T]) slot(a Action) string {
	return c.entity + ":" + string(a)
}

// dispatch runs call in the slot of a. apply runs only for the latest
// dispatch and only on success; then runs after a successful apply.
func (c *Controller[T]) dispatch(parent context.Context, a Action, call func(ctx context.Context) (func(s *State[T]), error), then func()) *effect.Task {
	return c.dispatchIn(parent, a, c.slot(a), call, then)
}

// dispatchIn is dispatch with an explicit slot. A superseded mutation that
// the server accepted still refreshes the list.
func (c *Controller[T]) dispatchIn(parent context.Context, a Action, slot string, call func(ctx context.Context) (func(s *State[T]), error), then func()) *effect.Task {
	c.update(func(s *State[T]) { s.Loading[a] = true })

	return c.runner.Go(parent, slot, func(ctx context.Context) (effect.Step, error) {
		apply, err := call(ctx)
		var publish func()
		var superseded func()
		if err == nil && a.mutates() {
			superseded = func() { c.refresh(parent) }
		}
		return effect.Step{
			Superseded: superseded,
			Apply: func() {
				publish = c.mutate(func(s *State[T]) {
					s.Loading[a] = false
					if a == FetchList || a == Search {
						s.Source = a
					}
					if err != nil {
						s.Errors[a] = err
						return
					}
					delete(s.Errors, a)
					if apply != nil {
						apply(s)
					}
				})
			},
			Then: func() {
				publish()
				switch {
				case err != nil:
					c.fail(a, err)
				case then != nil:
					then()
				}
			},
		}, err
	})
}

// reject records an error for a without issuing any request.
func (c *Controller[T]) reject(a Action, err error) *effect.Task {
	c.update(func(s *State[T]) { s.Errors[a] = err })
	c.fail(a, err)
	return effect.Done(err)
}

func (c *Controller[T]) fail(a Action, err error) {
	if apperr.KindOf(err) == apperr.KindCanceled {
		return
	}
	c.logger.Debug().Err(err).Str("action", string(a)).Msg("action failed")
	c.notifier.Notify(notify.Failure(c.entity, string(a), err))
}

func (c *Controller[T]) succeed(a Action, id int64, message string) {
	c.bus.Publish(events.New(c.entity, string(a), id))
	c.notifier.Notify(notify.Success(c.entity, string(a), message))
}

// FetchList loads every record and clears the active query.
func (c *Controller[T]) FetchList(ctx context.Context) *effect.Task {
	return c.dispatch(ctx, FetchList, func(ctx context.Context) (func(*State[T]), error) {
		items, err := c.repo.List(ctx)
		return func(s *State[T]) {
			s.Items = items
			s.Query = repository.Query{}
			s.Fetched = true
		}, err
	}, nil)
}

// RefreshIfFetched re-runs the list only when it has been shown before.
func (c *Controller[T]) RefreshIfFetched(ctx context.Context) *effect.Task {
	if !c.Snapshot().Fetched {
		return effect.Done(nil)
	}
	return c.FetchList(ctx)
}

func (c *Controller[T]) Search(ctx context.Context, q repository.Query) *effect.Task {
	return c.dispatch(ctx, Search, func(ctx context.Context) (func(*State[T]), error) {
		items, err := c.repo.Search(ctx, q)
		return func(s *State[T]) {
			s.Items = items
			s.Query = q
			s.Fetched = true
		}, err
	}, nil)
}

func (c *Controller[T]) FetchOne(ctx context.Context, id int64) *effect.Task {
	return c.dispatch(ctx, FetchOne, func(ctx context.Context) (func(*State[T]), error) {
		rec, err := c.repo.Get(ctx, id)
		return func(s *State[T]) {
			s.Selected = &rec
			replaceItem(s, rec)
		}, err
	}, nil)
}

// Select sets the selected record without a request.
func (c *Controller[T]) Select(rec *T) {
	c.update(func(s *State[T]) { s.Selected = rec })
}

// Create submits rec. On success the list is fetched again; the returned
// task finishes after that refresh.
func (c *Controller[T]) Create(ctx context.Context, rec T) *effect.Task {
	var created T
	return c.dispatch(ctx, Create, func(cctx context.Context) (func(*State[T]), error) {
		var err error
		created, err = c.repo.Create(cctx, rec)
		return nil, err
	}, func() {
		c.succeed(Create, created.Key(), "등록되었습니다.")
		c.refresh(ctx)
	})
}

// Update replaces rec; the server's copy becomes the selection.
func (c *Controller[T]) Update(ctx context.Context, id int64, rec T) *effect.Task {
	return c.dispatch(ctx, Update, func(cctx context.Context) (func(*State[T]), error) {
		updated, err := c.repo.Update(cctx, id, rec)
		return func(s *State[T]) { s.Selected = &updated }, err
	}, func() {
		c.succeed(Update, id, "수정되었습니다.")
		c.refresh(ctx)
	})
}

func (c *Controller[T]) Delete(ctx context.Context, id int64) *effect.Task {
	return c.dispatch(ctx, Delete, func(cctx context.Context) (func(*State[T]), error) {
		err := c.repo.Delete(cctx, id)
		return func(s *State[T]) {
			if s.Selected != nil && (*s.Selected).Key() == id {
				s.Selected = nil
			}
		}, err
	}, func() {
		c.succeed(Delete, id, "삭제되었습니다.")
		c.refresh(ctx)
	})
}

// refresh re-fetches the list after a mutation; the mutated record is never
// merged into Items locally.
func (c *Controller[T]) refresh(ctx context.Context) {
	// A newer list dispatch superseding this one is fine.
	_ = c.FetchList(ctx).Wait(ctx)
}

func replaceItem[T Record](s *State[T], rec T) {
	for i := range s.Items {
		if s.Items[i].Key() == rec.Key() {
			s.Items[i] = rec
			return
		}
	}
}
