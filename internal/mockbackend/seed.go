package mockbackend

import (
	"fmt"
	"time"

	"hospops/internal/normalize"
)

// SeedDemo fills the collections with a small hospital: two departments,
// their staff, a few patients and one visit of every kind.
func (s *Server) SeedDemo() error {
	var (
		ids = make(map[string]int64)
		err error
	)
	seed := func(name, collection string, v any) {
		if err != nil {
			return
		}
		var id int64
		if id, err = s.Seed(collection, v); err != nil {
			err = fmt.Errorf("seed %s: %w", name, err)
			return
		}
		ids[name] = id
	}

	seed("internal", "departments", normalize.DepartmentWire{DepartmentName: "내과", Location: "본관 2층"})
	seed("surgery", "departments", normalize.DepartmentWire{DepartmentName: "외과", Location: "별관 지하"})
	seed("doctor", "positions", normalize.PositionWire{PositionName: "전문의"})
	seed("nurse", "positions", normalize.PositionWire{PositionName: "간호사"})
	if err != nil {
		return err
	}
	seed("kim-dr", "staff", normalize.StaffWire{StaffName: "김도윤", DepartmentID: ids["internal"], PositionID: ids["doctor"]})
	seed("lee-rn", "staff", normalize.StaffWire{StaffName: "이하은", DepartmentID: ids["internal"], PositionID: ids["nurse"]})
	seed("park-dr", "staff", normalize.StaffWire{StaffName: "박준호", DepartmentID: ids["surgery"], PositionID: ids["doctor"]})

	seed("p1", "patients", normalize.PatientWire{Name: "김민수", Gender: "M", BirthDate: "1984-03-12", Phone: "010-1234-5678"})
	seed("p2", "patients", normalize.PatientWire{Name: "이서연", Gender: "F", BirthDate: "1991-11-02"})
	seed("p3", "patients", normalize.PatientWire{Name: "최지우", Gender: "F", BirthDate: "2015-07-30"})
	if err != nil {
		return err
	}

	now := time.Now()
	seed("r1", "receptions", normalize.ReceptionWire{VisitFields: normalize.VisitFields{
		PatientID: ids["p1"], DepartmentID: ids["internal"], VisitType: "OUTPATIENT",
		ArrivedAt: normalize.FormatTime(&now),
	}})
	seed("r2", "receptions", normalize.ReceptionWire{VisitFields: normalize.VisitFields{
		PatientID: ids["p2"], DepartmentID: ids["surgery"], VisitType: "EMERGENCY",
	}})
	seed("r3", "receptions", normalize.ReceptionWire{VisitFields: normalize.VisitFields{
		PatientID: ids["p3"], DepartmentID: ids["internal"], VisitType: "INPATIENT",
	}})
	if err != nil {
		return err
	}

	seed("res", "reservations", normalize.ReservationWire{
		VisitFields: normalize.VisitFields{PatientID: ids["p1"], DepartmentID: ids["internal"]},
		ReservedAt:  normalize.FormatTime(ptr(now.Add(48 * time.Hour))),
	})
	seed("er", "emergency-receptions", normalize.EmergencyWire{
		ReceptionID:    ids["r2"],
		VisitFields:    normalize.VisitFields{PatientID: ids["p2"], DepartmentID: ids["surgery"]},
		TriageLevel:    2,
		ChiefComplaint: "복통",
		BloodPressure:  "130/85",
		ArrivalMode:    "WALK_IN",
	})
	seed("ip", "inpatient-receptions", normalize.InpatientWire{
		ReceptionID:     ids["r3"],
		VisitFields:     normalize.VisitFields{PatientID: ids["p3"], DepartmentID: ids["internal"]},
		AdmissionPlanAt: normalize.FormatTime(ptr(now.Add(24 * time.Hour))),
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int("records", len(ids)).Msg("demo data seeded")
	return nil
}

func ptr[T any](v T) *T { return &v }
