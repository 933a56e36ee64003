package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"hospops/internal/apiclient"
	"hospops/internal/apperr"
	"hospops/internal/cache"
	"hospops/internal/models"
	"hospops/internal/visit"
)

// VisitRecord is a reception-like record carrying a status.
type VisitRecord interface {
	Entity
	CurrentStatus() visit.Status
	Family() visit.Family
}

// StatusRepository adds the status transition endpoint and the audit trail
// reads to the generic engine.
type StatusRepository[D VisitRecord, W any] struct {
	*Repository[D, W]
}

func NewStatus[D VisitRecord, W any](client *apiclient.Client, def Definition[D, W]) *StatusRepository[D, W] {
	return &StatusRepository[D, W]{Repository: New(client, def)}
}

// ChangeStatus sends only the new status and the reason. The server appends
// a status history entry and returns the full record.
func (r *StatusRepository[D, W]) ChangeStatus(ctx context.Context, id int64, change models.StatusChange) (D, error) {
	var zero D
	if id <= 0 {
		return zero, apperr.Invalid("id", "is required")
	}
	if err := change.Validate(); err != nil {
		return zero, err
	}
	req := r.request("status", http.MethodPatch, r.itemPath(id, "status"))
	req.Body = change
	w, err := apiclient.Write[W](ctx, r.client, req, guardKey(r.def.Entity, "status", id))
	if err != nil {
		return zero, fmt.Errorf("change %s %d status to %s: %w", r.def.Entity, id, change.Status, err)
	}
	return r.toDomain(w)
}

// History lists the status transitions of a record, oldest first.
func (r *StatusRepository[D, W]) History(ctx context.Context, id int64) ([]models.StatusHistory, error) {
	req := r.request("history", http.MethodGet, r.itemPath(id, "history"))
	key := cache.Key(r.def.Entity, "history", strconv.FormatInt(id, 10))
	out, err := apiclient.Read[[]models.StatusHistory](ctx, r.client, req, key)
	if err != nil {
		return nil, fmt.Errorf("%s %d history: %w", r.def.Entity, id, err)
	}
	if out == nil {
		out = []models.StatusHistory{}
	}
	return out, nil
}

// AuditLogs lists the generic audit entries of a record.
func (r *StatusRepository[D, W]) AuditLogs(ctx context.Context, id int64) ([]models.AuditLog, error) {
	req := r.request("audit-logs", http.MethodGet, r.itemPath(id, "audit-logs"))
	key := cache.Key(r.def.Entity, "audit-logs", strconv.FormatInt(id, 10))
	out, err := apiclient.Read[[]models.AuditLog](ctx, r.client, req, key)
	if err != nil {
		return nil, fmt.Errorf("%s %d audit logs: %w", r.def.Entity, id, err)
	}
	if out == nil {
		out = []models.AuditLog{}
	}
	return out, nil
}

// SpecRecord is a visit specialization.
type SpecRecord interface {
	VisitRecord
	models.Specialization
}

// SpecializationRepository serves a visit specialization, which can also be
// addressed by the id of the visit it is attached to.
type SpecializationRepository[D SpecRecord, W any] struct {
	*StatusRepository[D, W]
	kind models.Kind
}

func NewSpecialization[D SpecRecord, W any](client *apiclient.Client, kind models.Kind, def Definition[D, W]) *SpecializationRepository[D, W] {
	return &SpecializationRepository[D, W]{StatusRepository: NewStatus(client, def), kind: kind}
}

func (r *SpecializationRepository[D, W]) Kind() models.Kind { return r.kind }

func (r *SpecializationRepository[D, W]) visitPath(visitID int64) string {
	return r.def.Path + "/visit/" + strconv.FormatInt(visitID, 10)
}

// FetchByVisit returns the record attached to visitID, or nil when the visit
// has none.
func (r *SpecializationRepository[D, W]) FetchByVisit(ctx context.Context, visitID int64) (*D, error) {
	if visitID <= 0 {
		return nil, apperr.Invalid("visit_id", "is required")
	}
	req := r.request("fetch-by-visit", http.MethodGet, r.visitPath(visitID))
	key := cache.Key(r.def.Entity, "visit", strconv.FormatInt(visitID, 10))
	w, err := apiclient.Read[*W](ctx, r.client, req, key)
	if err != nil {
		return nil, fmt.Errorf("%s of visit %d: %w", r.def.Entity, visitID, err)
	}
	if w == nil {
		return nil, nil
	}
	d, err := r.toDomain(*w)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveByVisit upserts the record of visitID and returns what the server
// stored.
func (r *SpecializationRepository[D, W]) SaveByVisit(ctx context.Context, visitID int64, d D) (D, error) {
	var zero D
	if visitID <= 0 {
		return zero, apperr.Invalid("visit_id", "is required")
	}
	if err := d.Validate(); err != nil {
		return zero, err
	}
	req := r.withPayload(r.request("save-by-visit", http.MethodPut, r.visitPath(visitID)), d)
	w, err := apiclient.Write[W](ctx, r.client, req, guardKey(r.def.Entity, "visit-save", visitID))
	if err != nil {
		return zero, fmt.Errorf("save %s of visit %d: %w", r.def.Entity, visitID, err)
	}
	return r.toDomain(w)
}

func (r *SpecializationRepository[D, W]) DeleteByVisit(ctx context.Context, visitID int64) error {
	if visitID <= 0 {
		return apperr.Invalid("visit_id", "is required")
	}
	req := r.request("delete-by-visit", http.MethodDelete, r.visitPath(visitID))
	_, err := apiclient.Write[json.RawMessage](ctx, r.client, req, guardKey(r.def.Entity, "visit-delete", visitID))
	if err != nil {
		return fmt.Errorf("delete %s of visit %d: %w", r.def.Entity, visitID, err)
	}
	return nil
}

// Backend adapts the repository to the untyped by-visit contract of the
// sub-resource store.
func (r *SpecializationRepository[D, W]) Backend() *VisitBackend[D, W] {
	return &VisitBackend[D, W]{repo: r}
}

type VisitBackend[D SpecRecord, W any] struct {
	repo *SpecializationRepository[D, W]
}

func (b *VisitBackend[D, W]) FetchByVisit(ctx context.Context, visitID int64) (models.Specialization, error) {
	rec, err := b.repo.FetchByVisit(ctx, visitID)
	if err != nil || rec == nil {
		return nil, err
	}
	return *rec, nil
}

func (b *VisitBackend[D, W]) SaveByVisit(ctx context.Context, visitID int64, rec models.Specialization) (models.Specialization, error) {
	if rec == nil {
		return nil, apperr.Invalid("record", "is required")
	}
	d, ok := rec.(D)
	if !ok {
		return nil, apperr.Invalid("kind", "%s cannot store a %s record", b.repo.kind, rec.Kind())
	}
	saved, err := b.repo.SaveByVisit(ctx, visitID, d)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (b *VisitBackend[D, W]) DeleteByVisit(ctx context.Context, visitID int64) error {
	return b.repo.DeleteByVisit(ctx, visitID)
}
