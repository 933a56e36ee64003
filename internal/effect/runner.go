// Package effect runs asynchronous effects in named slots with take-latest
// supersession: starting an effect in a slot supersedes the previous one,
// and the superseded effect's state update never runs. Supersession is
// cooperative; the older network call is left to complete on the wire.
package effect

import (
	"context"
	"errors"
	"strings"
	"sync"

	"hospops/internal/metrics"
)

// ErrSuperseded is the result of a task whose slot was taken by a newer one.
var ErrSuperseded = errors.New("effect superseded by a newer dispatch")

// Step is the continuation of an effect. Apply mutates shared state and runs
// only while the effect is still the latest of its slot. Then runs after
// Apply, outside the slot lock, and is where follow-up dispatches go.
//
// Superseded runs instead of Apply and Then when a newer dispatch took the
// slot. It must not touch slot state; it exists for follow-ups the server
// is owed anyway, such as re-reading a list after a committed write.
type Step struct {
	Apply      func()
	Then       func()
	Superseded func()
}

// Effect does the suspending work (network I/O) and returns its
// continuation. A returned error is still delivered through Step, so the
// effect decides how failures land in state.
type Effect func(ctx context.Context) (Step, error)

// Task tracks one dispatched effect.
type Task struct {
	done    chan struct{}
	err     error
	applied bool
}

func newTask() *Task { return &Task{done: make(chan struct{})} }

// Done returns an already finished task carrying err.
func Done(err error) *Task {
	t := newTask()
	t.err = err
	t.applied = err == nil
	close(t.done)
	return t
}

func (t *Task) finish(applied bool, err error) {
	t.applied = applied
	t.err = err
	close(t.done)
}

// Done is closed when the task has finished or been superseded.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Applied reports whether the continuation ran. Valid after Done.
func (t *Task) Applied() bool {
	<-t.done
	return t.applied
}

// Err is the effect's error, or ErrSuperseded. Valid after Done.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

type slot struct {
	mu   sync.Mutex
	gen  uint64
	busy bool
}

// Runner owns the slots of one store.
type Runner struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewRunner() *Runner {
	return &Runner{slots: make(map[string]*slot)}
}

func (r *Runner) slot(name string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[name]
	if !ok {
		s = &slot{}
		r.slots[name] = s
	}
	return s
}

// Go runs eff in slot name, superseding whatever ran there before. The
// effect sees ctx unchanged: only the caller ending ctx aborts its I/O.
func (r *Runner) Go(ctx context.Context, name string, eff Effect) *Task {
	s := r.slot(name)

	s.mu.Lock()
	if s.busy {
		metrics.IncSuperseded(slotLabel(name))
	}
	s.busy = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	task := newTask()
	go func() {
		step, err := eff(ctx)

		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			if step.Superseded != nil {
				step.Superseded()
			}
			task.finish(false, ErrSuperseded)
			return
		}
		s.busy = false
		if step.Apply != nil {
			step.Apply()
		}
		s.mu.Unlock()

		if step.Then != nil {
			step.Then()
		}
		task.finish(true, err)
	}()
	return task
}

// Cancel supersedes the effect running in slot name, if any.
func (r *Runner) Cancel(name string) {
	s := r.slot(name)
	s.mu.Lock()
	s.gen++
	s.busy = false
	s.mu.Unlock()
}

// CancelAll supersedes every running effect.
func (r *Runner) CancelAll() {
	r.mu.Lock()
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	r.mu.Unlock()
	for _, name := range names {
		r.Cancel(name)
	}
}

// slotLabel keeps metric cardinality bounded: "subresource:reservations:7"
// is counted as "subresource".
func slotLabel(name string) string {
	head, _, _ := strings.Cut(name, ":")
	return head
}

// Busy reports whether slot name has an effect in flight.
func (r *Runner) Busy(name string) bool {
	s := r.slot(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
