package orchestrator

import (
	"context"
	"fmt"
	"time"

	"hospops/internal/apperr"
	"hospops/internal/effect"
	"hospops/internal/events"
	"hospops/internal/models"
	"hospops/internal/notify"
	"hospops/internal/repository"
	"hospops/internal/subresource"
	"hospops/internal/visit"

	"github.com/rs/zerolog"
)

// HubOptions configures a hub.
type HubOptions struct {
	Notifier notify.Notifier
	Logger   *zerolog.Logger
	Debounce time.Duration
	Machine  *visit.Machine
}

// Hub owns every controller, the sub-resource store and the event bus, and
// wires the refreshes that cross entity boundaries.
type Hub struct {
	Patients    *Controller[models.Patient]
	Insurances  *Controller[models.Insurance]
	Consents    *Controller[models.Consent]
	Departments *Controller[models.Department]
	Positions   *Controller[models.Position]
	Staff       *Controller[models.Staff]

	Receptions   *VisitController[models.Reception]
	Reservations *VisitController[models.Reservation]
	Emergency    *VisitController[models.EmergencyReception]
	Inpatient    *VisitController[models.InpatientReception]

	Subresources *subresource.Store
	Bus          *events.EventBus

	PatientSearch    *Autocomplete[models.Patient]
	DepartmentSearch *Autocomplete[models.Department]

	ctx    context.Context
	repos  *repository.Set
	runner *effect.Runner
	logger *zerolog.Logger
}

// NewHub builds the hub. ctx bounds the refreshes the hub dispatches on its
// own in reaction to events.
func NewHub(ctx context.Context, repos *repository.Set, opts HubOptions) *Hub {
	if ctx == nil {
		ctx = context.Background()
	}
	deps := Deps{Notifier: opts.Notifier, Logger: opts.Logger}.withDefaults()
	machine := opts.Machine
	if machine == nil {
		machine = visit.NewMachine()
	}

	h := &Hub{
		Patients:    NewController[models.Patient](repository.EntityPatients, repos.Patients, deps),
		Insurances:  NewController[models.Insurance](repository.EntityInsurances, repos.Insurances, deps),
		Consents:    NewController[models.Consent](repository.EntityConsents, repos.Consents, deps),
		Departments: NewController[models.Department](repository.EntityDepartments, repos.Departments, deps),
		Positions:   NewController[models.Position](repository.EntityPositions, repos.Positions, deps),
		Staff:       NewController[models.Staff](repository.EntityStaff, repos.Staff, deps),

		Receptions:   NewVisitController[models.Reception](repository.EntityReceptions, repos.Receptions, machine, deps),
		Reservations: NewVisitController[models.Reservation](repository.EntityReservations, repos.Reservations, machine, deps),
		Emergency:    NewVisitController[models.EmergencyReception](repository.EntityEmergency, repos.Emergency, machine, deps),
		Inpatient:    NewVisitController[models.InpatientReception](repository.EntityInpatient, repos.Inpatient, machine, deps),

		Subresources: subresource.New(map[models.Kind]subresource.Backend{
			models.KindReservation: repos.Reservations.Backend(),
			models.KindEmergency:   repos.Emergency.Backend(),
			models.KindInpatient:   repos.Inpatient.Backend(),
		}, deps.Logger),
		Bus: deps.Bus,

		PatientSearch: NewAutocomplete("patients", func(ctx context.Context, text string) ([]models.Patient, error) {
			return repos.Patients.Search(ctx, repository.Query{Field: "name", Value: text})
		}, opts.Debounce, deps.Notifier),
		DepartmentSearch: NewAutocomplete("departments", func(ctx context.Context, text string) ([]models.Department, error) {
			return repos.Departments.Search(ctx, repository.Query{Field: "name", Value: text})
		}, opts.Debounce, deps.Notifier),

		ctx:    ctx,
		repos:  repos,
		runner: effect.NewRunner(),
		logger: deps.Logger,
	}
	h.wire()
	return h
}

// wire subscribes the cross-entity refreshes. Each one first drops the
// cached reads of the entity it refreshes:
//   - a specialization mutation refreshes the receptions list and the
//     sub-resource key of the visit it belongs to;
//   - department or position mutations refresh the staff list, whose entries
//     carry the joined names, and staff mutations refresh the department
//     staff counts.
func (h *Hub) wire() {
	for _, kind := range models.Kinds {
		h.Bus.Subscribe(string(kind)+".*", func(e events.Event) error {
			h.repos.Receptions.Client().Invalidate(h.ctx, repository.EntityReceptions)
			h.Receptions.RefreshIfFetched(h.ctx)
			if e.Action == actionVisitSave || e.Action == actionVisitDelete {
				// The store already holds the server's answer.
				return nil
			}
			visitID := e.VisitID
			if visitID == 0 {
				visitID = h.visitOf(kind, e.ID)
			}
			if visitID > 0 {
				h.Subresources.Refresh(h.ctx, kind, visitID)
			}
			return nil
		})
	}
	for _, entity := range []string{repository.EntityDepartments, repository.EntityPositions} {
		h.Bus.Subscribe(entity+".*", func(events.Event) error {
			h.repos.Staff.Client().Invalidate(h.ctx, repository.EntityStaff)
			h.Staff.RefreshIfFetched(h.ctx)
			return nil
		})
	}
	h.Bus.Subscribe(repository.EntityStaff+".*", func(events.Event) error {
		h.repos.Departments.Client().Invalidate(h.ctx, repository.EntityDepartments)
		h.Departments.RefreshIfFetched(h.ctx)
		return nil
	})
}

const (
	actionVisitSave   = "visit-save"
	actionVisitDelete = "visit-delete"
)

// visitOf resolves the visit of a specialization record the hub has loaded.
func (h *Hub) visitOf(kind models.Kind, id int64) int64 {
	switch kind {
	case models.KindReservation:
		return visitOf(h.Reservations, id)
	case models.KindEmergency:
		return visitOf(h.Emergency, id)
	case models.KindInpatient:
		return visitOf(h.Inpatient, id)
	}
	return 0
}

func visitOf[T repository.SpecRecord](c *VisitController[T], id int64) int64 {
	s := c.Snapshot()
	if s.Selected != nil && (*s.Selected).Key() == id {
		return (*s.Selected).VisitID()
	}
	for _, item := range s.Items {
		if item.Key() == id {
			return item.VisitID()
		}
	}
	return 0
}

func (h *Hub) listOf(kind models.Kind) interface {
	RefreshIfFetched(ctx context.Context) *effect.Task
} {
	switch kind {
	case models.KindEmergency:
		return h.Emergency
	case models.KindInpatient:
		return h.Inpatient
	}
	return h.Reservations
}

// SaveSpecialization upserts the record attached to visitID through the
// sub-resource store and, on success, announces it like any other mutation.
func (h *Hub) SaveSpecialization(ctx context.Context, visitID int64, rec models.Specialization) *effect.Task {
	if rec == nil {
		return effect.Done(apperr.Invalid("record", "is required"))
	}
	task := h.Subresources.Save(ctx, rec.Kind(), visitID, rec)
	return h.announce(ctx, task, rec.Kind(), actionVisitSave, visitID)
}

// DeleteSpecialization removes the record of kind attached to visitID.
func (h *Hub) DeleteSpecialization(ctx context.Context, kind models.Kind, visitID int64) *effect.Task {
	task := h.Subresources.Delete(ctx, kind, visitID)
	return h.announce(ctx, task, kind, actionVisitDelete, visitID)
}

// announce publishes an event once task succeeds. The returned task
// finishes after the event handlers ran.
func (h *Hub) announce(ctx context.Context, task *effect.Task, kind models.Kind, action string, visitID int64) *effect.Task {
	slot := fmt.Sprintf("announce:%s:%d", kind, visitID)
	return h.runner.Go(ctx, slot, func(ctx context.Context) (effect.Step, error) {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return effect.Step{}, ctx.Err()
		}
		err := task.Err()
		return effect.Step{Then: func() {
			if err != nil {
				return
			}
			h.listOf(kind).RefreshIfFetched(h.ctx)
			e := events.New(string(kind), action, visitID)
			e.VisitID = visitID
			h.Bus.Publish(e)
		}}, err
	})
}

// Close stops pending debounce timers and supersedes running effects of the
// hub itself.
func (h *Hub) Close() {
	h.PatientSearch.Stop()
	h.DepartmentSearch.Stop()
	h.runner.CancelAll()
}
