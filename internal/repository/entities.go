package repository

import (
	"hospops/internal/apiclient"
	"hospops/internal/models"
	"hospops/internal/normalize"
)

// Entity names double as cache and guard namespaces.
const (
	EntityPatients     = "patients"
	EntityDepartments  = "departments"
	EntityPositions    = "positions"
	EntityStaff        = "staff"
	EntityInsurances   = "insurances"
	EntityConsents     = "consents"
	EntityReceptions   = "receptions"
	EntityReservations = "reservations"
	EntityEmergency    = "emergency-receptions"
	EntityInpatient    = "inpatient-receptions"
)

type (
	PatientRepository    = Repository[models.Patient, normalize.PatientWire]
	DepartmentRepository = Repository[models.Department, normalize.DepartmentWire]
	PositionRepository   = Repository[models.Position, normalize.PositionWire]
	StaffRepository      = Repository[models.Staff, normalize.StaffWire]
	InsuranceRepository  = Repository[models.Insurance, normalize.InsuranceWire]
	ConsentRepository    = Repository[models.Consent, normalize.ConsentWire]
	ReceptionRepository  = StatusRepository[models.Reception, normalize.ReceptionWire]

	ReservationRepository = SpecializationRepository[models.Reservation, normalize.ReservationWire]
	EmergencyRepository   = SpecializationRepository[models.EmergencyReception, normalize.EmergencyWire]
	InpatientRepository   = SpecializationRepository[models.InpatientReception, normalize.InpatientWire]
)

// Reception backend.

func NewPatients(c *apiclient.Client) *PatientRepository {
	return New(c, Definition[models.Patient, normalize.PatientWire]{
		Entity: EntityPatients,
		Path:   "/api/patients",
		Search: ReceptionSearch,
		Codec:  Codec[models.Patient, normalize.PatientWire]{normalize.PatientToDomain, normalize.PatientToBackend},
	})
}

func NewInsurances(c *apiclient.Client) *InsuranceRepository {
	return New(c, Definition[models.Insurance, normalize.InsuranceWire]{
		Entity: EntityInsurances,
		Path:   "/api/insurances",
		Search: ReceptionSearch,
		Codec:  Codec[models.Insurance, normalize.InsuranceWire]{normalize.InsuranceToDomain, normalize.InsuranceToBackend},
	})
}

func NewConsents(c *apiclient.Client) *ConsentRepository {
	return New(c, Definition[models.Consent, normalize.ConsentWire]{
		Entity: EntityConsents,
		Path:   "/api/consents",
		Search: ReceptionSearch,
		Codec:  Codec[models.Consent, normalize.ConsentWire]{normalize.ConsentToDomain, normalize.ConsentToBackend},
	})
}

func NewReceptions(c *apiclient.Client) *ReceptionRepository {
	return NewStatus(c, Definition[models.Reception, normalize.ReceptionWire]{
		Entity: EntityReceptions,
		Path:   "/api/receptions",
		Search: ReceptionSearch,
		Codec:  Codec[models.Reception, normalize.ReceptionWire]{normalize.ReceptionToDomain, normalize.ReceptionToBackend},
	})
}

func NewReservations(c *apiclient.Client) *ReservationRepository {
	return NewSpecialization(c, models.KindReservation, Definition[models.Reservation, normalize.ReservationWire]{
		Entity: EntityReservations,
		Path:   "/api/reservations",
		Search: ReceptionSearch,
		Codec:  Codec[models.Reservation, normalize.ReservationWire]{normalize.ReservationToDomain, normalize.ReservationToBackend},
	})
}

func NewEmergencyReceptions(c *apiclient.Client) *EmergencyRepository {
	return NewSpecialization(c, models.KindEmergency, Definition[models.EmergencyReception, normalize.EmergencyWire]{
		Entity: EntityEmergency,
		Path:   "/api/emergency-receptions",
		Search: ReceptionSearch,
		Codec:  Codec[models.EmergencyReception, normalize.EmergencyWire]{normalize.EmergencyToDomain, normalize.EmergencyToBackend},
	})
}

func NewInpatientReceptions(c *apiclient.Client) *InpatientRepository {
	return NewSpecialization(c, models.KindInpatient, Definition[models.InpatientReception, normalize.InpatientWire]{
		Entity: EntityInpatient,
		Path:   "/api/inpatient-receptions",
		Search: ReceptionSearch,
		Codec:  Codec[models.InpatientReception, normalize.InpatientWire]{normalize.InpatientToDomain, normalize.InpatientToBackend},
	})
}

// Admin backend.

func NewDepartments(c *apiclient.Client) *DepartmentRepository {
	return New(c, Definition[models.Department, normalize.DepartmentWire]{
		Entity: EntityDepartments,
		Path:   "/api/departments",
		Search: AdminSearch,
		Codec:  Codec[models.Department, normalize.DepartmentWire]{normalize.DepartmentToDomain, normalize.DepartmentToBackend},
	})
}

func NewPositions(c *apiclient.Client) *PositionRepository {
	return New(c, Definition[models.Position, normalize.PositionWire]{
		Entity: EntityPositions,
		Path:   "/api/positions",
		Search: AdminSearch,
		Codec:  Codec[models.Position, normalize.PositionWire]{normalize.PositionToDomain, normalize.PositionToBackend},
	})
}

// NewStaff sends create and update as multipart: the record in the "staff"
// part and the optional photo in "file".
func NewStaff(c *apiclient.Client) *StaffRepository {
	return New(c, Definition[models.Staff, normalize.StaffWire]{
		Entity:        EntityStaff,
		Path:          "/api/staff",
		Search:        AdminSearch,
		Codec:         Codec[models.Staff, normalize.StaffWire]{normalize.StaffToDomain, normalize.StaffToBackend},
		MultipartPart: "staff",
		Attachment:    func(s models.Staff) *models.Upload { return s.Photo },
	})
}

// Set groups every repository of both backends.
type Set struct {
	Patients     *PatientRepository
	Insurances   *InsuranceRepository
	Consents     *ConsentRepository
	Receptions   *ReceptionRepository
	Reservations *ReservationRepository
	Emergency    *EmergencyRepository
	Inpatient    *InpatientRepository

	Departments *DepartmentRepository
	Positions   *PositionRepository
	Staff       *StaffRepository
}

// NewSet wires the reception and admin repositories to their clients.
func NewSet(reception, admin *apiclient.Client) *Set {
	return &Set{
		Patients:     NewPatients(reception),
		Insurances:   NewInsurances(reception),
		Consents:     NewConsents(reception),
		Receptions:   NewReceptions(reception),
		Reservations: NewReservations(reception),
		Emergency:    NewEmergencyReceptions(reception),
		Inpatient:    NewInpatientReceptions(reception),
		Departments:  NewDepartments(admin),
		Positions:    NewPositions(admin),
		Staff:        NewStaff(admin),
	}
}
