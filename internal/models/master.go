package models

import (
	"time"

	"hospops/internal/apperr"
)

// Patient is a registered patient.
type Patient struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Gender    Gender       `json:"gender,omitempty"`
	BirthDate *time.Time   `json:"birth_date,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Address   string       `json:"address,omitempty"`
	Status    RecordStatus `json:"status"`
}

func (p Patient) Validate() error {
	if err := requireText("name", p.Name); err != nil {
		return err
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderUnknown:
	default:
		return apperr.Invalid("gender", "unknown gender %q", p.Gender)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return apperr.Invalid("birth_date", "is in the future")
	}
	return validStatus(p.Status)
}

// BasementFloor marks a location below ground level.
const BasementFloor = "B"

// Location is where a department sits. Raw keeps the backend text when it
// does not follow the "<building> <n>층" / "<building> 지하" grammar.
type Location struct {
	BuildingNo string `json:"building_no,omitempty"`
	FloorNo    string `json:"floor_no,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// Department of the hospital.
type Department struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Location Location     `json:"location"`
	Status   RecordStatus `json:"status"`
	// StaffCount is computed by the server.
	StaffCount int `json:"staff_count"`
}

func (d Department) Validate() error {
	if err := requireText("name", d.Name); err != nil {
		return err
	}
	return validStatus(d.Status)
}

// Position is a staff job title.
type Position struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Status RecordStatus `json:"status"`
}

func (p Position) Validate() error {
	if err := requireText("name", p.Name); err != nil {
		return err
	}
	return validStatus(p.Status)
}

// Staff member. DepartmentName and PositionName are joined by the server.
type Staff struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	DepartmentID   int64        `json:"department_id"`
	DepartmentName string       `json:"department_name,omitempty"`
	PositionID     int64        `json:"position_id"`
	PositionName   string       `json:"position_name,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	Email          string       `json:"email,omitempty"`
	PhotoURL       string       `json:"photo_url,omitempty"`
	Status         RecordStatus `json:"status"`
	// Photo is uploaded with create/update and never returned.
	Photo *Upload `json:"-"`
}

func (s Staff) Validate() error {
	if err := requireText("name", s.Name); err != nil {
		return err
	}
	if err := requireID("department_id", s.DepartmentID); err != nil {
		return err
	}
	if err := requireID("position_id", s.PositionID); err != nil {
		return err
	}
	return validStatus(s.Status)
}

// Insurance coverage of a patient.
type Insurance struct {
	ID            int64        `json:"id"`
	PatientID     int64        `json:"patient_id"`
	InsuranceType string       `json:"insurance_type"`
	PolicyNo      string       `json:"policy_no"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty"`
	ValidTo       *time.Time   `json:"valid_to,omitempty"`
	Status        RecordStatus `json:"status"`
}

func (i Insurance) Validate() error {
	if err := requireID("patient_id", i.PatientID); err != nil {
		return err
	}
	if err := requireText("insurance_type", i.InsuranceType); err != nil {
		return err
	}
	if i.ValidFrom != nil && i.ValidTo != nil && i.ValidTo.Before(*i.ValidFrom) {
		return apperr.Invalid("valid_to", "is before valid_from")
	}
	return validStatus(i.Status)
}

// Consent signed by a patient.
type Consent struct {
	ID          int64        `json:"id"`
	PatientID   int64        `json:"patient_id"`
	ConsentType string       `json:"consent_type"`
	AgreedAt    *time.Time   `json:"agreed_at,omitempty"`
	WithdrawnAt *time.Time   `json:"withdrawn_at,omitempty"`
	Status      RecordStatus `json:"status"`
}

func (c Consent) Validate() error {
	if err := requireID("patient_id", c.PatientID); err != nil {
		return err
	}
	if err := requireText("consent_type", c.ConsentType); err != nil {
		return err
	}
	if c.AgreedAt == nil {
		return apperr.Invalid("agreed_at", "is required")
	}
	if c.WithdrawnAt != nil && c.WithdrawnAt.Before(*c.AgreedAt) {
		return apperr.Invalid("withdrawn_at", "is before agreed_at")
	}
	return validStatus(c.Status)
}

func (p Patient) Key() int64    { return p.ID }
func (d Department) Key() int64 { return d.ID }
func (p Position) Key() int64   { return p.ID }
func (s Staff) Key() int64      { return s.ID }
func (i Insurance) Key() int64  { return i.ID }
func (c Consent) Key() int64    { return c.ID }
