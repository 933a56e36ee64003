package models

import (
	"time"

	"hospops/internal/apperr"
	"hospops/internal/visit"
)

// VisitType is the kind of encounter a visit represents.
type VisitType string

const (
	VisitOutpatient VisitType = "OUTPATIENT"
	VisitEmergency  VisitType = "EMERGENCY"
	VisitInpatient  VisitType = "INPATIENT"
)

// Visit is the identity shared by all reception specializations.
type Visit struct {
	ID           int64  `json:"id"`
	VisitNumber  string `json:"visit_number"`
	PatientID    int64  `json:"patient_id"`
	DepartmentID int64  `json:"department_id"`

	// Joined by the server, read only.
	PatientName    string `json:"patient_name,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`

	DoctorID    *int64       `json:"doctor_id,omitempty"`
	VisitType   VisitType    `json:"visit_type"`
	Status      visit.Status `json:"status"`
	ScheduledAt *time.Time   `json:"scheduled_at,omitempty"`
	ArrivedAt   *time.Time   `json:"arrived_at,omitempty"`
	Note        string       `json:"note,omitempty"`
}

func (v Visit) Key() int64 {
	return v.ID
}

func (v Visit) CurrentStatus() visit.Status {
	return v.Status
}

// Validate checks the fields common to every reception form.
func (v Visit) Validate() error {
	if err := requireID("patient_id", v.PatientID); err != nil {
		return err
	}
	if err := requireID("department_id", v.DepartmentID); err != nil {
		return err
	}
	switch v.VisitType {
	case VisitOutpatient, VisitEmergency, VisitInpatient, "":
	default:
		return apperr.Invalid("visit_type", "unknown visit type %q", v.VisitType)
	}
	return nil
}

// Kind names a visit specialization. It doubles as the URL segment of the
// by-visit endpoints.
type Kind string

const (
	KindReservation Kind = "reservations"
	KindEmergency   Kind = "emergency-receptions"
	KindInpatient   Kind = "inpatient-receptions"
)

// Kinds lists every specialization kind.
var Kinds = []Kind{KindReservation, KindEmergency, KindInpatient}

// Specialization is the per-kind record attached to a visit.
type Specialization interface {
	Kind() Kind
	VisitID() int64
}

// Reservation books a visit ahead of time.
type Reservation struct {
	Visit
	ReservedAt *time.Time `json:"reserved_at"`
}

func (Reservation) Kind() Kind {
	return KindReservation
}

func (r Reservation) VisitID() int64 {
	return r.ID
}

func (Reservation) Family() visit.Family {
	return visit.FamilyReservation
}

func (r Reservation) Validate() error {
	if err := r.Visit.Validate(); err != nil {
		return err
	}
	if r.ReservedAt == nil || r.ReservedAt.IsZero() {
		return apperr.Invalid("reserved_at", "is required")
	}
	if r.Status != "" && !visit.Valid(visit.FamilyReservation, r.Status) {
		return apperr.Invalid("status", "%s is not a reservation status", r.Status)
	}
	return nil
}

// Vitals measured at triage. Zero means not measured.
type Vitals struct {
	Temp        float64 `json:"temp,omitempty"`
	BPSystolic  int     `json:"bp_systolic,omitempty"`
	BPDiastolic int     `json:"bp_diastolic,omitempty"`
	HR          int     `json:"hr,omitempty"`
	RR          int     `json:"rr,omitempty"`
	SpO2        int     `json:"spo2,omitempty"`
}

// EmergencyReception is a visit through the emergency room.
type EmergencyReception struct {
	Visit
	TriageLevel    int    `json:"triage_level"`
	ChiefComplaint string `json:"chief_complaint,omitempty"`
	Vitals         Vitals `json:"vitals"`
	ArrivalMode    string `json:"arrival_mode,omitempty"`
	TriageNote     string `json:"triage_note,omitempty"`
}

func (EmergencyReception) Kind() Kind {
	return KindEmergency
}

func (e EmergencyReception) VisitID() int64 {
	return e.ID
}

func (EmergencyReception) Family() visit.Family {
	return visit.FamilyReception
}

func (e EmergencyReception) Validate() error {
	if err := e.Visit.Validate(); err != nil {
		return err
	}
	if e.TriageLevel < 1 || e.TriageLevel > 5 {
		return apperr.Invalid("triage_level", "must be between 1 and 5, got %d", e.TriageLevel)
	}
	if e.Vitals.SpO2 < 0 || e.Vitals.SpO2 > 100 {
		return apperr.Invalid("spo2", "must be a percentage")
	}
	if e.Vitals.BPSystolic != 0 && e.Vitals.BPDiastolic > e.Vitals.BPSystolic {
		return apperr.Invalid("bp_diastolic", "exceeds systolic pressure")
	}
	return nil
}

// InpatientReception is a planned admission.
type InpatientReception struct {
	Visit
	AdmissionPlanAt *time.Time `json:"admission_plan_at"`
	WardID          *int64     `json:"ward_id,omitempty"`
	RoomID          *int64     `json:"room_id,omitempty"`
}

func (InpatientReception) Kind() Kind {
	return KindInpatient
}

func (i InpatientReception) VisitID() int64 {
	return i.ID
}

func (InpatientReception) Family() visit.Family {
	return visit.FamilyReception
}

func (i InpatientReception) Validate() error {
	if err := i.Visit.Validate(); err != nil {
		return err
	}
	if i.AdmissionPlanAt == nil || i.AdmissionPlanAt.IsZero() {
		return apperr.Invalid("admission_plan_at", "is required")
	}
	if i.RoomID != nil && i.WardID == nil {
		return apperr.Invalid("ward_id", "is required when a room is assigned")
	}
	return nil
}

// Reception is an outpatient reception: a bare visit.
type Reception struct {
	Visit
}

func (Reception) Family() visit.Family {
	return visit.FamilyReception
}
