package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"hospops/internal/models"
	"hospops/internal/visit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationRoundTrip(t *testing.T) {
	d, err := DepartmentToDomain(DepartmentWire{DepartmentName: "내과", Location: "본관 2층"})
	require.NoError(t, err)
	assert.Equal(t, "본관", d.Location.BuildingNo)
	assert.Equal(t, "2", d.Location.FloorNo)
	assert.Equal(t, "본관 2층", DepartmentToBackend(d).Location)

	basement, err := DepartmentToDomain(DepartmentWire{Location: "별관 지하"})
	require.NoError(t, err)
	assert.Equal(t, models.BasementFloor, basement.Location.FloorNo)
	assert.Equal(t, "별관 지하", DepartmentToBackend(basement).Location)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in       string
		building string
		floor    string
	}{
		{"본관 2층", "본관", "2"},
		{"본관 12층", "본관", "12"},
		{"별관 지하", "별관", "B"},
		{"별관 지하 1층", "별관", "B"},
		{"본관", "본관", ""},
		{"본관 로비 옆", "본관", ""},
		{"  신관   3층 ", "신관", "3"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			loc := ParseLocation(tt.in)
			assert.Equal(t, tt.building, loc.BuildingNo)
			assert.Equal(t, tt.floor, loc.FloorNo)
			assert.Equal(t, tt.in, loc.Raw)
		})
	}
}

func TestFormatLocationKeepsFreeText(t *testing.T) {
	loc := ParseLocation("본관 로비 옆")
	assert.Equal(t, "본관 로비 옆", FormatLocation(loc))

	// An edited building no longer matches the raw text.
	loc.BuildingNo = "신관"
	assert.Equal(t, "신관", FormatLocation(loc))

	loc.FloorNo = "5"
	assert.Equal(t, "신관 5층", FormatLocation(loc))

	assert.Equal(t, "", FormatLocation(models.Location{}))
}

func TestFormatLocationClearedFloor(t *testing.T) {
	loc := ParseLocation("본관 2층")
	loc.FloorNo = ""
	assert.Equal(t, "본관", FormatLocation(loc))

	loc = ParseLocation("별관 지하")
	loc.FloorNo = ""
	assert.Equal(t, "별관", FormatLocation(loc))
}

func TestActiveFlag(t *testing.T) {
	assert.Equal(t, models.StatusActive, StatusFromFlag("Y"))
	assert.Equal(t, models.StatusActive, StatusFromFlag("y"))
	assert.Equal(t, models.StatusInactive, StatusFromFlag("N"))
	assert.Equal(t, models.StatusInactive, StatusFromFlag(""))
	assert.Equal(t, "Y", FlagFromStatus(models.StatusActive))
	assert.Equal(t, "Y", FlagFromStatus(""))
	assert.Equal(t, "N", FlagFromStatus(models.StatusInactive))
}

func TestPatientMapping(t *testing.T) {
	var w PatientWire
	require.NoError(t, json.Unmarshal([]byte(`{"patientId":3,"name":"홍길동","gender":"F","birthDate":"1990-05-01","isActive":"Y"}`), &w))

	p, err := PatientToDomain(w)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, models.GenderFemale, p.Gender)
	require.NotNil(t, p.BirthDate)
	assert.Equal(t, 1990, p.BirthDate.Year())

	back := PatientToBackend(p)
	assert.Equal(t, "F", back.Gender)
	assert.Equal(t, "1990-05-01", back.BirthDate)

	_, err = PatientToDomain(PatientWire{PatientID: 4, BirthDate: "yesterday"})
	assert.Error(t, err)
}

func TestEmergencyMapping(t *testing.T) {
	raw := `{
		"receptionId": 11,
		"receptionNo": "ER-0011",
		"patientId": 3,
		"patientName": "홍길동",
		"departmentId": 5,
		"status": "waiting",
		"arrivedAt": "2025-03-01T10:15:00",
		"triageLevel": 2,
		"temperature": 38.2,
		"bloodPressure": "135/85",
		"heartRate": 110,
		"spo2": 96,
		"arrivalMode": "AMBULANCE"
	}`
	var w EmergencyWire
	require.NoError(t, json.Unmarshal([]byte(raw), &w))

	e, err := EmergencyToDomain(w)
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.VisitID())
	assert.Equal(t, visit.StatusWaiting, e.Status)
	assert.Equal(t, models.VisitEmergency, e.VisitType)
	assert.Equal(t, 135, e.Vitals.BPSystolic)
	assert.Equal(t, 85, e.Vitals.BPDiastolic)
	assert.Equal(t, 38.2, e.Vitals.Temp)
	assert.Zero(t, e.Vitals.RR)
	require.NotNil(t, e.ArrivedAt)
	assert.Equal(t, 15, e.ArrivedAt.Minute())

	back := EmergencyToBackend(e)
	assert.Equal(t, "135/85", back.BloodPressure)
	assert.Nil(t, back.RespiratoryRate)
	assert.Equal(t, "2025-03-01T10:15:00", back.ArrivedAt)
	assert.Empty(t, back.PatientName, "joined names are not sent back")
}

func TestBloodPressure(t *testing.T) {
	sys, dia, err := ParseBloodPressure(" 120 / 80 ")
	require.NoError(t, err)
	assert.Equal(t, 120, sys)
	assert.Equal(t, 80, dia)

	_, _, err = ParseBloodPressure("120")
	assert.Error(t, err)
	_, _, err = ParseBloodPressure("high/low")
	assert.Error(t, err)

	assert.Equal(t, "", FormatBloodPressure(0, 0))
}

func TestReservationAndInpatientTimes(t *testing.T) {
	at := time.Date(2025, 4, 2, 9, 30, 0, 0, time.Local)
	r := models.Reservation{Visit: models.Visit{ID: 7, PatientID: 1, DepartmentID: 2, Status: visit.StatusReserved}, ReservedAt: &at}

	w := ReservationToBackend(r)
	assert.Equal(t, "2025-04-02T09:30:00", w.ReservedAt)
	assert.Equal(t, int64(7), w.ReservationID)

	back, err := ReservationToDomain(w)
	require.NoError(t, err)
	assert.True(t, at.Equal(*back.ReservedAt))

	ward := int64(3)
	in, err := InpatientToDomain(InpatientWire{ReceptionID: 9, AdmissionPlanAt: "2025-04-03", WardID: &ward})
	require.NoError(t, err)
	assert.Equal(t, models.VisitInpatient, in.VisitType)
	assert.Equal(t, 3, in.AdmissionPlanAt.Day())
	assert.Equal(t, &ward, in.WardID)
}
