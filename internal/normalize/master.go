package normalize

import (
	"fmt"

	"hospops/internal/models"
)

// PatientWire is the patient shape of the reception backend.
type PatientWire struct {
	PatientID int64  `json:"patientId,omitempty"`
	Name      string `json:"name"`
	Gender    string `json:"gender,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	IsActive  string `json:"isActive,omitempty"`
}

func PatientToDomain(w PatientWire) (models.Patient, error) {
	birth, err := ParseTime(w.BirthDate)
	if err != nil {
		return models.Patient{}, fmt.Errorf("patient %d birthDate: %w", w.PatientID, err)
	}
	return models.Patient{
		ID:        w.PatientID,
		Name:      w.Name,
		Gender:    genderFromWire(w.Gender),
		BirthDate: birth,
		Phone:     w.Phone,
		Address:   w.Address,
		Status:    StatusFromFlag(w.IsActive),
	}, nil
}

func PatientToBackend(p models.Patient) PatientWire {
	return PatientWire{
		PatientID: p.ID,
		Name:      p.Name,
		Gender:    genderToWire(p.Gender),
		BirthDate: FormatDate(p.BirthDate),
		Phone:     p.Phone,
		Address:   p.Address,
		IsActive:  FlagFromStatus(p.Status),
	}
}

// DepartmentWire is the department shape of the admin backend.
type DepartmentWire struct {
	DepartmentID   int64  `json:"departmentId,omitempty"`
	DepartmentName string `json:"departmentName"`
	Location       string `json:"location,omitempty"`
	IsActive       string `json:"isActive,omitempty"`
	StaffCount     int    `json:"staffCount,omitempty"`
}

func DepartmentToDomain(w DepartmentWire) (models.Department, error) {
	return models.Department{
		ID:         w.DepartmentID,
		Name:       w.DepartmentName,
		Location:   ParseLocation(w.Location),
		Status:     StatusFromFlag(w.IsActive),
		StaffCount: w.StaffCount,
	}, nil
}

func DepartmentToBackend(d models.Department) DepartmentWire {
	return DepartmentWire{
		DepartmentID:   d.ID,
		DepartmentName: d.Name,
		Location:       FormatLocation(d.Location),
		IsActive:       FlagFromStatus(d.Status),
	}
}

type PositionWire struct {
	PositionID   int64  `json:"positionId,omitempty"`
	PositionName string `json:"positionName"`
	IsActive     string `json:"isActive,omitempty"`
}

func PositionToDomain(w PositionWire) (models.Position, error) {
	return models.Position{
		ID:     w.PositionID,
		Name:   w.PositionName,
		Status: StatusFromFlag(w.IsActive),
	}, nil
}

func PositionToBackend(p models.Position) PositionWire {
	return PositionWire{
		PositionID:   p.ID,
		PositionName: p.Name,
		IsActive:     FlagFromStatus(p.Status),
	}
}

// StaffWire is sent as the "staff" part of the multipart form.
type StaffWire struct {
	StaffID        int64  `json:"staffId,omitempty"`
	StaffName      string `json:"staffName"`
	DepartmentID   int64  `json:"departmentId"`
	DepartmentName string `json:"departmentName,omitempty"`
	PositionID     int64  `json:"positionId"`
	PositionName   string `json:"positionName,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	PhotoURL       string `json:"photoUrl,omitempty"`
	IsActive       string `json:"isActive,omitempty"`
}

func StaffToDomain(w StaffWire) (models.Staff, error) {
	return models.Staff{
		ID:             w.StaffID,
		Name:           w.StaffName,
		DepartmentID:   w.DepartmentID,
		DepartmentName: w.DepartmentName,
		PositionID:     w.PositionID,
		PositionName:   w.PositionName,
		Phone:          w.Phone,
		Email:          w.Email,
		PhotoURL:       w.PhotoURL,
		Status:         StatusFromFlag(w.IsActive),
	}, nil
}

// StaffToBackend drops the joined names; the server owns them.
func StaffToBackend(s models.Staff) StaffWire {
	return StaffWire{
		StaffID:      s.ID,
		StaffName:    s.Name,
		DepartmentID: s.DepartmentID,
		PositionID:   s.PositionID,
		Phone:        s.Phone,
		Email:        s.Email,
		PhotoURL:     s.PhotoURL,
		IsActive:     FlagFromStatus(s.Status),
	}
}

type InsuranceWire struct {
	InsuranceID   int64  `json:"insuranceId,omitempty"`
	PatientID     int64  `json:"patientId"`
	InsuranceType string `json:"insuranceType"`
	PolicyNo      string `json:"policyNo,omitempty"`
	ValidFrom     string `json:"validFrom,omitempty"`
	ValidTo       string `json:"validTo,omitempty"`
	IsActive      string `json:"isActive,omitempty"`
}

func InsuranceToDomain(w InsuranceWire) (models.Insurance, error) {
	from, err := ParseTime(w.ValidFrom)
	if err != nil {
		return models.Insurance{}, fmt.Errorf("insurance %d validFrom: %w", w.InsuranceID, err)
	}
	to, err := ParseTime(w.ValidTo)
	if err != nil {
		return models.Insurance{}, fmt.Errorf("insurance %d validTo: %w", w.InsuranceID, err)
	}
	return models.Insurance{
		ID:            w.InsuranceID,
		PatientID:     w.PatientID,
		InsuranceType: w.InsuranceType,
		PolicyNo:      w.PolicyNo,
		ValidFrom:     from,
		ValidTo:       to,
		Status:        StatusFromFlag(w.IsActive),
	}, nil
}

func InsuranceToBackend(i models.Insurance) InsuranceWire {
	return InsuranceWire{
		InsuranceID:   i.ID,
		PatientID:     i.PatientID,
		InsuranceType: i.InsuranceType,
		PolicyNo:      i.PolicyNo,
		ValidFrom:     FormatDate(i.ValidFrom),
		ValidTo:       FormatDate(i.ValidTo),
		IsActive:      FlagFromStatus(i.Status),
	}
}

type ConsentWire struct {
	ConsentID   int64  `json:"consentId,omitempty"`
	PatientID   int64  `json:"patientId"`
	ConsentType string `json:"consentType"`
	AgreedAt    string `json:"agreedAt,omitempty"`
	WithdrawnAt string `json:"withdrawnAt,omitempty"`
	IsActive    string `json:"isActive,omitempty"`
}

func ConsentToDomain(w ConsentWire) (models.Consent, error) {
	agreed, err := ParseTime(w.AgreedAt)
	if err != nil {
		return models.Consent{}, fmt.Errorf("consent %d agreedAt: %w", w.ConsentID, err)
	}
	withdrawn, err := ParseTime(w.WithdrawnAt)
	if err != nil {
		return models.Consent{}, fmt.Errorf("consent %d withdrawnAt: %w", w.ConsentID, err)
	}
	return models.Consent{
		ID:          w.ConsentID,
		PatientID:   w.PatientID,
		ConsentType: w.ConsentType,
		AgreedAt:    agreed,
		WithdrawnAt: withdrawn,
		Status:      StatusFromFlag(w.IsActive),
	}, nil
}

func ConsentToBackend(c models.Consent) ConsentWire {
	return ConsentWire{
		ConsentID:   c.ID,
		PatientID:   c.PatientID,
		ConsentType: c.ConsentType,
		AgreedAt:    FormatTime(c.AgreedAt),
		WithdrawnAt: FormatTime(c.WithdrawnAt),
		IsActive:    FlagFromStatus(c.Status),
	}
}
