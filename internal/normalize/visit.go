package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"hospops/internal/models"
	"hospops/internal/visit"
)

// VisitFields are shared by every reception-like wire record.
type VisitFields struct {
	PatientID      int64  `json:"patientId"`
	PatientName    string `json:"patientName,omitempty"`
	DepartmentID   int64  `json:"departmentId"`
	DepartmentName string `json:"departmentName,omitempty"`
	DoctorID       *int64 `json:"doctorId,omitempty"`
	VisitType      string `json:"visitType,omitempty"`
	Status         string `json:"status,omitempty"`
	ScheduledAt    string `json:"scheduledAt,omitempty"`
	ArrivedAt      string `json:"arrivedAt,omitempty"`
	Note           string `json:"note,omitempty"`
}

func visitToDomain(id int64, number string, f VisitFields) (models.Visit, error) {
	scheduled, err := ParseTime(f.ScheduledAt)
	if err != nil {
		return models.Visit{}, fmt.Errorf("visit %d scheduledAt: %w", id, err)
	}
	arrived, err := ParseTime(f.ArrivedAt)
	if err != nil {
		return models.Visit{}, fmt.Errorf("visit %d arrivedAt: %w", id, err)
	}
	return models.Visit{
		ID:             id,
		VisitNumber:    number,
		PatientID:      f.PatientID,
		PatientName:    f.PatientName,
		DepartmentID:   f.DepartmentID,
		DepartmentName: f.DepartmentName,
		DoctorID:       f.DoctorID,
		VisitType:      models.VisitType(strings.ToUpper(f.VisitType)),
		Status:         visit.Status(strings.ToUpper(f.Status)),
		ScheduledAt:    scheduled,
		ArrivedAt:      arrived,
		Note:           f.Note,
	}, nil
}

// visitToBackend leaves out the joined names.
func visitToBackend(v models.Visit) VisitFields {
	return VisitFields{
		PatientID:    v.PatientID,
		DepartmentID: v.DepartmentID,
		DoctorID:     v.DoctorID,
		VisitType:    string(v.VisitType),
		Status:       string(v.Status),
		ScheduledAt:  FormatTime(v.ScheduledAt),
		ArrivedAt:    FormatTime(v.ArrivedAt),
		Note:         v.Note,
	}
}

type ReceptionWire struct {
	ReceptionID int64  `json:"receptionId,omitempty"`
	ReceptionNo string `json:"receptionNo,omitempty"`
	VisitFields
}

func ReceptionToDomain(w ReceptionWire) (models.Reception, error) {
	v, err := visitToDomain(w.ReceptionID, w.ReceptionNo, w.VisitFields)
	if err != nil {
		return models.Reception{}, err
	}
	if v.VisitType == "" {
		v.VisitType = models.VisitOutpatient
	}
	return models.Reception{Visit: v}, nil
}

func ReceptionToBackend(r models.Reception) ReceptionWire {
	return ReceptionWire{
		ReceptionID: r.ID,
		ReceptionNo: r.VisitNumber,
		VisitFields: visitToBackend(r.Visit),
	}
}

type ReservationWire struct {
	ReservationID int64  `json:"reservationId,omitempty"`
	ReservationNo string `json:"reservationNo,omitempty"`
	VisitFields
	ReservedAt string `json:"reservedAt"`
}

func ReservationToDomain(w ReservationWire) (models.Reservation, error) {
	v, err := visitToDomain(w.ReservationID, w.ReservationNo, w.VisitFields)
	if err != nil {
		return models.Reservation{}, err
	}
	reserved, err := ParseTime(w.ReservedAt)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("reservation %d reservedAt: %w", w.ReservationID, err)
	}
	if v.VisitType == "" {
		v.VisitType = models.VisitOutpatient
	}
	return models.Reservation{Visit: v, ReservedAt: reserved}, nil
}

func ReservationToBackend(r models.Reservation) ReservationWire {
	return ReservationWire{
		ReservationID: r.ID,
		ReservationNo: r.VisitNumber,
		VisitFields:   visitToBackend(r.Visit),
		ReservedAt:    FormatTime(r.ReservedAt),
	}
}

type EmergencyWire struct {
	ReceptionID int64  `json:"receptionId,omitempty"`
	ReceptionNo string `json:"receptionNo,omitempty"`
	VisitFields
	TriageLevel     int      `json:"triageLevel"`
	ChiefComplaint  string   `json:"chiefComplaint,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	BloodPressure   string   `json:"bloodPressure,omitempty"`
	HeartRate       *int     `json:"heartRate,omitempty"`
	RespiratoryRate *int     `json:"respiratoryRate,omitempty"`
	SpO2            *int     `json:"spo2,omitempty"`
	ArrivalMode     string   `json:"arrivalMode,omitempty"`
	TriageNote      string   `json:"triageNote,omitempty"`
}

func EmergencyToDomain(w EmergencyWire) (models.EmergencyReception, error) {
	v, err := visitToDomain(w.ReceptionID, w.ReceptionNo, w.VisitFields)
	if err != nil {
		return models.EmergencyReception{}, err
	}
	v.VisitType = models.VisitEmergency
	sys, dia, err := ParseBloodPressure(w.BloodPressure)
	if err != nil {
		return models.EmergencyReception{}, fmt.Errorf("emergency %d: %w", w.ReceptionID, err)
	}
	return models.EmergencyReception{
		Visit:          v,
		TriageLevel:    w.TriageLevel,
		ChiefComplaint: w.ChiefComplaint,
		Vitals: models.Vitals{
			Temp:        deref(w.Temperature),
			BPSystolic:  sys,
			BPDiastolic: dia,
			HR:          deref(w.HeartRate),
			RR:          deref(w.RespiratoryRate),
			SpO2:        deref(w.SpO2),
		},
		ArrivalMode: w.ArrivalMode,
		TriageNote:  w.TriageNote,
	}, nil
}

func EmergencyToBackend(e models.EmergencyReception) EmergencyWire {
	fields := visitToBackend(e.Visit)
	fields.VisitType = string(models.VisitEmergency)
	return EmergencyWire{
		ReceptionID:     e.ID,
		ReceptionNo:     e.VisitNumber,
		VisitFields:     fields,
		TriageLevel:     e.TriageLevel,
		ChiefComplaint:  e.ChiefComplaint,
		Temperature:     nonZero(e.Vitals.Temp),
		BloodPressure:   FormatBloodPressure(e.Vitals.BPSystolic, e.Vitals.BPDiastolic),
		HeartRate:       nonZero(e.Vitals.HR),
		RespiratoryRate: nonZero(e.Vitals.RR),
		SpO2:            nonZero(e.Vitals.SpO2),
		ArrivalMode:     e.ArrivalMode,
		TriageNote:      e.TriageNote,
	}
}

type InpatientWire struct {
	ReceptionID int64  `json:"receptionId,omitempty"`
	ReceptionNo string `json:"receptionNo,omitempty"`
	VisitFields
	AdmissionPlanAt string `json:"admissionPlanAt"`
	WardID          *int64 `json:"wardId,omitempty"`
	RoomID          *int64 `json:"roomId,omitempty"`
}

func InpatientToDomain(w InpatientWire) (models.InpatientReception, error) {
	v, err := visitToDomain(w.ReceptionID, w.ReceptionNo, w.VisitFields)
	if err != nil {
		return models.InpatientReception{}, err
	}
	v.VisitType = models.VisitInpatient
	plan, err := ParseTime(w.AdmissionPlanAt)
	if err != nil {
		return models.InpatientReception{}, fmt.Errorf("inpatient %d admissionPlanAt: %w", w.ReceptionID, err)
	}
	return models.InpatientReception{
		Visit:           v,
		AdmissionPlanAt: plan,
		WardID:          w.WardID,
		RoomID:          w.RoomID,
	}, nil
}

func InpatientToBackend(i models.InpatientReception) InpatientWire {
	fields := visitToBackend(i.Visit)
	fields.VisitType = string(models.VisitInpatient)
	return InpatientWire{
		ReceptionID:     i.ID,
		ReceptionNo:     i.VisitNumber,
		VisitFields:     fields,
		AdmissionPlanAt: FormatTime(i.AdmissionPlanAt),
		WardID:          i.WardID,
		RoomID:          i.RoomID,
	}
}

// ParseBloodPressure splits "120/80". Empty input is not an error.
func ParseBloodPressure(s string) (systolic, diastolic int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	hi, lo, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("blood pressure %q is not systolic/diastolic", s)
	}
	if systolic, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
		return 0, 0, fmt.Errorf("blood pressure %q: %w", s, err)
	}
	if diastolic, err = strconv.Atoi(strings.TrimSpace(lo)); err != nil {
		return 0, 0, fmt.Errorf("blood pressure %q: %w", s, err)
	}
	return systolic, diastolic, nil
}

func FormatBloodPressure(systolic, diastolic int) string {
	if systolic == 0 && diastolic == 0 {
		return ""
	}
	return strconv.Itoa(systolic) + "/" + strconv.Itoa(diastolic)
}

func deref[T int | float64](p *T) T {
	if p == nil {
		return 0
	}
	return *p
}

func nonZero[T int | float64](v T) *T {
	if v == 0 {
		return nil
	}
	return &v
}
