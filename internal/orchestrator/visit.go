package orchestrator

import (
	"context"
	"fmt"

	"hospops/internal/apperr"
	"hospops/internal/effect"
	"hospops/internal/events"
	"hospops/internal/models"
	"hospops/internal/notify"
	"hospops/internal/repository"
	"hospops/internal/visit"
)

// StatusRepository is a Repository with the status transition endpoint.
type StatusRepository[T any] interface {
	Repository[T]
	ChangeStatus(ctx context.Context, id int64, change models.StatusChange) (T, error)
}

// VisitController is a controller for reception-like records. Status changes
// are gated by the transition machine on the status the controller knows.
type VisitController[T repository.VisitRecord] struct {
	*Controller[T]
	repo    StatusRepository[T]
	machine *visit.Machine
	family  visit.Family
}

func NewVisitController[T repository.VisitRecord](entity string, repo StatusRepository[T], machine *visit.Machine, deps Deps) *VisitController[T] {
	if machine == nil {
		machine = visit.NewMachine()
	}
	var zero T
	return &VisitController[T]{
		Controller: NewController[T](entity, repo, deps),
		repo:       repo,
		machine:    machine,
		family:     zero.Family(),
	}
}

// KnownStatus looks id up in the selection, then in the list.
func (v *VisitController[T]) KnownStatus(id int64) (visit.Status, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if sel := v.state.Selected; sel != nil && (*sel).Key() == id {
		return (*sel).CurrentStatus(), true
	}
	for _, item := range v.state.Items {
		if item.Key() == id {
			return item.CurrentStatus(), true
		}
	}
	return "", false
}

// Actions lists the staff actions currently available for id.
func (v *VisitController[T]) Actions(id int64) []visit.Action {
	status, ok := v.KnownStatus(id)
	if !ok {
		return nil
	}
	return v.machine.Actions(v.family, status)
}

// CanCancel reports whether a cancel of id would be dispatched.
func (v *VisitController[T]) CanCancel(id int64) bool {
	status, ok := v.KnownStatus(id)
	return ok && v.machine.CanTransition(v.family, status, visit.StatusCanceled)
}

// ChangeStatus moves id to change.Status. A change the machine does not
// allow from the known status, or one for a record whose status is unknown,
// fails with a validation error and issues no request. On success both the
// record and the list are fetched again. Each visit has its own slot, so a
// change on one visit never supersedes a change on another.
func (v *VisitController[T]) ChangeStatus(ctx context.Context, id int64, change models.StatusChange) *effect.Task {
	status, ok := v.KnownStatus(id)
	if !ok {
		return v.reject(ChangeStatus, apperr.Invalid("status", "status of %s %d is not loaded", v.entity, id))
	}
	if v.machine.IsTerminal(v.family, status) {
		return v.reject(ChangeStatus, apperr.Invalid("status", "%s %d is %s and can no longer change", v.entity, id, status))
	}
	if !v.machine.CanTransition(v.family, status, change.Status) {
		return v.reject(ChangeStatus, apperr.Invalid("status", "%s %d cannot go from %s to %s", v.entity, id, status, change.Status))
	}

	slot := fmt.Sprintf("%s:%d", v.slot(ChangeStatus), id)
	return v.dispatchIn(ctx, ChangeStatus, slot, func(cctx context.Context) (func(*State[T]), error) {
		rec, err := v.repo.ChangeStatus(cctx, id, change)
		return func(s *State[T]) {
			if s.Selected != nil && (*s.Selected).Key() == id {
				s.Selected = &rec
			}
			replaceItem(s, rec)
		}, err
	}, func() {
		v.bus.Publish(events.New(v.entity, "status", id))
		v.notifier.Notify(notifySuccess(v.entity, change.Status))
		detail := v.FetchOne(ctx, id)
		list := v.FetchList(ctx)
		_ = detail.Wait(ctx)
		_ = list.Wait(ctx)
	})
}

// Apply performs a staff action such as call or complete.
func (v *VisitController[T]) Apply(ctx context.Context, id int64, action visit.Action, reasonText string) *effect.Task {
	status, ok := v.KnownStatus(id)
	if !ok {
		return v.reject(ChangeStatus, apperr.Invalid("status", "status of %s %d is not loaded", v.entity, id))
	}
	to, ok := v.machine.Next(v.family, status, action)
	if !ok {
		return v.reject(ChangeStatus, apperr.Invalid("action", "%s is not available while %s %d is %s", action, v.entity, id, status))
	}
	return v.ChangeStatus(ctx, id, models.StatusChange{Status: to, ReasonText: reasonText})
}

// Cancel cancels id with a reason.
func (v *VisitController[T]) Cancel(ctx context.Context, id int64, reasonCode, reasonText string) *effect.Task {
	return v.ChangeStatus(ctx, id, models.StatusChange{
		Status:     visit.StatusCanceled,
		ReasonCode: reasonCode,
		ReasonText: reasonText,
	})
}

func notifySuccess(entity string, to visit.Status) notify.Notice {
	label := visit.Labels[to]
	if label == "" {
		label = string(to)
	}
	return notify.Success(entity, string(ChangeStatus), label+" 처리되었습니다.")
}
