package mockbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hospops/internal/apiclient"
	"hospops/internal/cache"
	"hospops/internal/models"
	"hospops/internal/normalize"
	"hospops/internal/repository"
	"hospops/internal/visit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(nil)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body any) (int, reply) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out reply
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	_, ts := newTestServer(t)

	status, res := call(t, ts, http.MethodPost, "/api/receptions", map[string]any{
		"patientId": 1, "departmentId": 2, "status": "COMPLETED",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &rec))
	assert.EqualValues(t, 1, rec["receptionId"])
	assert.Equal(t, "R-000001", rec["receptionNo"])
	assert.Equal(t, "WAITING", rec["status"], "create never takes a status")
}

func TestSearchAcceptsBothParamStyles(t *testing.T) {
	s, ts := newTestServer(t)
	_, err := s.Seed("departments", normalize.DepartmentWire{DepartmentName: "내과", Location: "본관 2층"})
	require.NoError(t, err)
	_, err = s.Seed("departments", normalize.DepartmentWire{DepartmentName: "외과", Location: "별관 지하"})
	require.NoError(t, err)
	_, err = s.Seed("patients", normalize.PatientWire{Name: "김민수"})
	require.NoError(t, err)

	_, res := call(t, ts, http.MethodGet, "/api/departments/search?condition=name&value=내", nil)
	var depts []map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &depts))
	require.Len(t, depts, 1)
	assert.Equal(t, "내과", depts[0]["departmentName"])

	_, res = call(t, ts, http.MethodGet, "/api/patients/search?searchType=name&searchValue=김", nil)
	var pats []map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &pats))
	assert.Len(t, pats, 1)

	_, res = call(t, ts, http.MethodGet, "/api/patients/search?searchType=name&searchValue=없음", nil)
	assert.True(t, res.Success)
	assert.JSONEq(t, `[]`, string(res.Result))

	status, res := call(t, ts, http.MethodGet, "/api/patients/search", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, res.Success)
}

func TestStatusTransitionsFollowMachine(t *testing.T) {
	s, ts := newTestServer(t)
	id, err := s.Seed("reservations", normalize.ReservationWire{VisitFields: normalize.VisitFields{PatientID: 1, DepartmentID: 1}})
	require.NoError(t, err)

	path := "/api/reservations/" + itoa(id) + "/status"
	_, res := call(t, ts, http.MethodPatch, path, map[string]string{"status": "CANCELED", "reasonText": "환자 요청"})
	require.True(t, res.Success, res.Message)

	_, res = call(t, ts, http.MethodPatch, path, map[string]string{"status": "COMPLETED"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "허용되지 않는 상태 변경")

	hist := s.History("reservations", id)
	require.Len(t, hist, 1)
	assert.Equal(t, visit.StatusReserved, hist[0].FromStatus)
	assert.Equal(t, visit.StatusCanceled, hist[0].ToStatus)
	assert.Equal(t, "환자 요청", hist[0].ReasonText)

	_, res = call(t, ts, http.MethodGet, "/api/reservations/"+itoa(id)+"/audit-logs", nil)
	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(res.Result, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "STATUS_CHANGE", logs[0].Action)
}

func TestDeleteIsSoftForVisits(t *testing.T) {
	s, ts := newTestServer(t)
	rid, _ := s.Seed("receptions", Record{"patientId": 1, "departmentId": 1})
	did, _ := s.Seed("departments", Record{"departmentName": "소아과"})

	_, res := call(t, ts, http.MethodDelete, "/api/receptions/"+itoa(rid), nil)
	require.True(t, res.Success)
	rec, ok := s.Lookup("receptions", rid)
	require.True(t, ok)
	assert.Equal(t, "INACTIVE", rec["status"])

	_, res = call(t, ts, http.MethodDelete, "/api/receptions/"+itoa(rid), nil)
	assert.False(t, res.Success)

	_, res = call(t, ts, http.MethodDelete, "/api/departments/"+itoa(did), nil)
	require.True(t, res.Success)
	_, ok = s.Lookup("departments", did)
	assert.False(t, ok)
}

func TestByVisitEndpoints(t *testing.T) {
	_, ts := newTestServer(t)
	path := "/api/emergency-receptions/visit/5"

	_, res := call(t, ts, http.MethodGet, path, nil)
	require.True(t, res.Success)
	assert.Equal(t, "null", string(res.Result))

	_, res = call(t, ts, http.MethodPut, path, map[string]any{"patientId": 1, "departmentId": 1, "triageLevel": 2})
	require.True(t, res.Success)

	_, res = call(t, ts, http.MethodGet, path, nil)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(res.Result, &rec))
	assert.EqualValues(t, 5, rec["receptionId"])
	assert.EqualValues(t, 2, rec["triageLevel"])

	_, res = call(t, ts, http.MethodDelete, path, nil)
	require.True(t, res.Success)
	_, res = call(t, ts, http.MethodGet, path, nil)
	assert.Equal(t, "null", string(res.Result))
}

func TestFailureInjection(t *testing.T) {
	s, ts := newTestServer(t)
	s.FailNext("점검 중입니다")
	s.BreakNext(http.StatusServiceUnavailable)

	status, res := call(t, ts, http.MethodGet, "/api/patients", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, res.Success)
	assert.Equal(t, "점검 중입니다", res.Message)

	status, _ = call(t, ts, http.MethodGet, "/api/patients", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	_, res = call(t, ts, http.MethodGet, "/api/patients", nil)
	assert.True(t, res.Success)
	assert.Equal(t, 3, s.Calls("GET /api/patients"))
}

func TestRepositoriesAgainstMock(t *testing.T) {
	s, ts := newTestServer(t)
	did, _ := s.Seed("departments", normalize.DepartmentWire{DepartmentName: "내과", Location: "본관 3층"})
	pid, _ := s.Seed("positions", normalize.PositionWire{PositionName: "간호사"})

	client := apiclient.New(apiclient.Config{Name: "mock", BaseURL: ts.URL, Timeout: 2 * time.Second}, cache.NewMemory(), nil)
	repos := repository.NewSet(client, client)
	ctx := context.Background()

	created, err := repos.Staff.Create(ctx, models.Staff{
		Name:         "정하늘",
		DepartmentID: did,
		PositionID:   pid,
		Photo:        &models.Upload{Name: "me.png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, "내과", created.DepartmentName)
	assert.Equal(t, "간호사", created.PositionName)
	assert.Contains(t, created.PhotoURL, "me.png")

	depts, err := repos.Departments.List(ctx)
	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.Equal(t, 1, depts[0].StaffCount)
	assert.Equal(t, "3", depts[0].Location.FloorNo)

	resp, err := http.Get(ts.URL + created.PhotoURL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	at := time.Date(2026, 11, 2, 9, 30, 0, 0, time.Local)
	res, err := repos.Reservations.Create(ctx, models.Reservation{
		Visit:      models.Visit{PatientID: 1, DepartmentID: did},
		ReservedAt: &at,
	})
	require.NoError(t, err)
	assert.Equal(t, visit.StatusReserved, res.Status)
	require.NotNil(t, res.ReservedAt)
	assert.True(t, at.Equal(*res.ReservedAt))

	canceled, err := repos.Reservations.ChangeStatus(ctx, res.ID, models.StatusChange{Status: visit.StatusCanceled})
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCanceled, canceled.Status)

	hist, err := repos.Reservations.History(ctx, res.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestSeedDemo(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.SeedDemo())
	ts := httptest.NewServer(s)
	defer ts.Close()

	client := apiclient.New(apiclient.Config{Name: "mock", BaseURL: ts.URL, Timeout: 2 * time.Second}, cache.NewMemory(), nil)
	repos := repository.NewSet(client, client)
	ctx := context.Background()

	receptions, err := repos.Receptions.List(ctx)
	require.NoError(t, err)
	require.Len(t, receptions, 3)

	depts, err := repos.Departments.List(ctx)
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, 2, depts[0].StaffCount)

	var withEmergency int
	for _, r := range receptions {
		rec, err := repos.Emergency.FetchByVisit(ctx, r.ID)
		require.NoError(t, err)
		if rec != nil {
			withEmergency++
			assert.Equal(t, 2, rec.TriageLevel)
		}
	}
	assert.Equal(t, 1, withEmergency)
}
