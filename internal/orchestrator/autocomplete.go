package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"hospops/internal/metrics"
	"hospops/internal/notify"
)

// DefaultDebounce is the quiet period before a typed query is sent.
const DefaultDebounce = 250 * time.Millisecond

// SearchFunc runs one remote query.
type SearchFunc[T any] func(ctx context.Context, text string) ([]T, error)

// Suggestions is what an autocomplete currently shows.
type Suggestions[T any] struct {
	Text    string
	Items   []T
	Err     error
	Loading bool
}

// Autocomplete debounces keystrokes and drops stale responses: every
// dispatch takes the next request id, and a response is applied only if its
// id is still the latest. In-flight requests are not aborted.
type Autocomplete[T any] struct {
	name     string
	search   SearchFunc[T]
	delay    time.Duration
	notifier notify.Notifier

	mu     sync.Mutex
	timer  *time.Timer
	latest uint64
	state  Suggestions[T]
	subs   []func(Suggestions[T])
}

func NewAutocomplete[T any](name string, search SearchFunc[T], delay time.Duration, notifier notify.Notifier) *Autocomplete[T] {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Autocomplete[T]{name: name, search: search, delay: delay, notifier: notifier}
}

// Type records a keystroke. The query is dispatched once no further
// keystroke arrives within the debounce delay.
func (a *Autocomplete[T]) Type(ctx context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.Dispatch(ctx, text) })
}

// Dispatch sends text immediately. The returned channel is closed once the
// response has been applied or dropped.
func (a *Autocomplete[T]) Dispatch(ctx context.Context, text string) <-chan struct{} {
	done := make(chan struct{})
	text = strings.TrimSpace(text)

	a.mu.Lock()
	a.latest++
	id := a.latest
	if text == "" {
		a.state = Suggestions[T]{}
		publish := a.publishLocked()
		a.mu.Unlock()
		publish()
		close(done)
		return done
	}
	a.state.Text = text
	a.state.Loading = true
	publish := a.publishLocked()
	a.mu.Unlock()
	publish()

	go func() {
		defer close(done)
		items, err := a.search(ctx, text)

		a.mu.Lock()
		if id != a.latest {
			a.mu.Unlock()
			metrics.IncStaleResponse(a.name)
			return
		}
		if err != nil {
			// The previous suggestions stay next to the error.
			items = a.state.Items
		}
		a.state = Suggestions[T]{Text: text, Items: items, Err: err}
		publish := a.publishLocked()
		a.mu.Unlock()
		publish()

		if err != nil && a.notifier != nil {
			a.notifier.Notify(notify.Failure(a.name, "autocomplete", err))
		}
	}()
	return done
}

// Current returns what is shown now.
func (a *Autocomplete[T]) Current() Suggestions[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	s.Items = append([]T(nil), s.Items...)
	return s
}

// RequestID returns the id of the latest dispatch.
func (a *Autocomplete[T]) RequestID() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Subscribe registers fn for every change of the suggestions.
func (a *Autocomplete[T]) Subscribe(fn func(Suggestions[T])) {
	a.mu.Lock()
	a.subs = append(a.subs, fn)
	a.mu.Unlock()
}

// Stop cancels a pending debounce timer.
func (a *Autocomplete[T]) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autocomplete[T]) publishLocked() func() {
	snap := a.state
	subs := append(([]func(Suggestions[T]))(nil), a.subs...)
	return func() {
		for _, sub := range subs {
			sub(snap)
		}
	}
}
