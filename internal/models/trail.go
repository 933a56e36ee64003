package models

import (
	"time"

	"hospops/internal/apperr"
	"hospops/internal/visit"
)

// StatusChange is the body of a status transition request. It never carries
// other fields of the record.
type StatusChange struct {
	Status     visit.Status `json:"status"`
	ReasonCode string       `json:"reasonCode,omitempty"`
	ReasonText string       `json:"reasonText,omitempty"`
}

func (c StatusChange) Validate() error {
	if c.Status == "" {
		return apperr.Invalid("status", "is required")
	}
	if c.Status == visit.StatusInactive {
		return apperr.Invalid("status", "records are deactivated through delete")
	}
	return nil
}

// StatusHistory is one append-only entry written by the server on every
// status transition.
type StatusHistory struct {
	ID         int64        `json:"id"`
	VisitID    int64        `json:"visitId"`
	FromStatus visit.Status `json:"fromStatus"`
	ToStatus   visit.Status `json:"toStatus"`
	ChangedBy  string       `json:"changedBy"`
	ChangedAt  time.Time    `json:"changedAt"`
	ReasonCode string       `json:"reasonCode,omitempty"`
	ReasonText string       `json:"reasonText,omitempty"`
}

// AuditLog is a generic append-only audit entry.
type AuditLog struct {
	ID         int64     `json:"id"`
	VisitID    int64     `json:"visitId"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
	ReasonCode string    `json:"reasonCode,omitempty"`
	ReasonText string    `json:"reasonText,omitempty"`
}
