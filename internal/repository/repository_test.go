package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hospops/internal/apiclient"
	"hospops/internal/apperr"
	"hospops/internal/cache"
	"hospops/internal/models"
	"hospops/internal/visit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "ok", "result": result})
}

func fail(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

func newClient(t *testing.T, mux *http.ServeMux) (*apiclient.Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	c := apiclient.New(apiclient.Config{Name: "test", BaseURL: srv.URL, Timeout: 2 * time.Second}, cache.NewMemory(), nil)
	return c, &hits
}

func TestDepartmentSearchUsesAdminParams(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/departments/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name", r.URL.Query().Get("condition"))
		assert.Equal(t, "김", r.URL.Query().Get("value"))
		reply(w, []map[string]any{{"departmentId": 1, "departmentName": "내과", "location": "본관 2층", "isActive": "Y"}})
	})
	c, hits := newClient(t, mux)
	repo := NewDepartments(c)
	ctx := context.Background()

	got, err := repo.Search(ctx, Query{Field: "name", Value: "김"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].Location.FloorNo)
	assert.Equal(t, models.StatusActive, got[0].Status)

	_, ok := c.Cache().Get(ctx, "departments:search:name:김")
	assert.True(t, ok)

	_, err = repo.Search(ctx, Query{Field: "name", Value: "김"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = repo.Search(ctx, Query{Value: "김"})
	assert.True(t, apperr.IsValidation(err))
}

func TestSearchDistinguishesEmptyFromFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/patients/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name", r.URL.Query().Get("searchType"))
		if r.URL.Query().Get("searchValue") == "boom" {
			fail(w, http.StatusInternalServerError, "검색 실패")
			return
		}
		reply(w, []any{})
	})
	c, _ := newClient(t, mux)
	repo := NewPatients(c)

	none, err := repo.Search(context.Background(), Query{Field: "name", Value: "없음"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	failed, err := repo.Search(context.Background(), Query{Field: "name", Value: "boom"})
	require.Error(t, err)
	assert.Nil(t, failed)
	assert.True(t, apperr.IsRequestFailed(err))
}

func TestMutationInvalidatesEntityCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/positions", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{{"positionId": 1, "positionName": "간호사", "isActive": "Y"}})
	})
	mux.HandleFunc("GET /api/positions/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"positionId": 1, "positionName": "간호사", "isActive": "Y"})
	})
	mux.HandleFunc("PUT /api/positions/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "수간호사", body["positionName"])
		reply(w, body)
	})
	c, _ := newClient(t, mux)
	repo := NewPositions(c)
	ctx := context.Background()

	_, err := repo.List(ctx)
	require.NoError(t, err)
	_, err = repo.Get(ctx, 1)
	require.NoError(t, err)
	c.Cache().Set(ctx, "positions:search:name:간", []byte(`[]`), time.Minute)
	c.Cache().Set(ctx, "staff:list", []byte(`[]`), time.Minute)

	updated, err := repo.Update(ctx, 1, models.Position{ID: 1, Name: "수간호사"})
	require.NoError(t, err)
	assert.Equal(t, "수간호사", updated.Name)

	for _, key := range []string{"positions:list", "positions:get:1", "positions:search:name:간"} {
		_, ok := c.Cache().Get(ctx, key)
		assert.False(t, ok, key)
	}
	_, ok := c.Cache().Get(ctx, "staff:list")
	assert.True(t, ok, "other entities keep their entries")
}

func TestCreateValidatesBeforeCalling(t *testing.T) {
	c, hits := newClient(t, http.NewServeMux())
	repo := NewEmergencyReceptions(c)

	_, err := repo.Create(context.Background(), models.EmergencyReception{
		Visit:       models.Visit{PatientID: 1, DepartmentID: 2},
		TriageLevel: 9,
	})
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestRepeatedDeleteIsRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/consents/{id}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, nil)
	})
	c, hits := newClient(t, mux)
	repo := NewConsents(c)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, 4))
	err := repo.Delete(ctx, 4)
	assert.True(t, apperr.IsRateLimited(err))
	assert.NoError(t, repo.Delete(ctx, 5), "guard keys are per record")
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestChangeStatusSendsOnlyStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/receptions/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "CANCELED", "reasonText": "환자 요청"}, body)
		reply(w, map[string]any{"receptionId": 3, "patientId": 1, "departmentId": 2, "status": "CANCELED"})
	})
	mux.HandleFunc("GET /api/receptions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]any{{"fromStatus": "WAITING", "toStatus": "CANCELED", "changedBy": "nurse01", "changedAt": "2025-03-01T10:00:00Z"}})
	})
	c, _ := newClient(t, mux)
	repo := NewReceptions(c)
	ctx := context.Background()

	rec, err := repo.ChangeStatus(ctx, 3, models.StatusChange{Status: visit.StatusCanceled, ReasonText: "환자 요청"})
	require.NoError(t, err)
	assert.Equal(t, visit.StatusCanceled, rec.Status)

	hist, err := repo.History(ctx, 3)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, visit.StatusWaiting, hist[0].FromStatus)
	assert.Equal(t, "nurse01", hist[0].ChangedBy)

	_, err = repo.ChangeStatus(ctx, 3, models.StatusChange{Status: visit.StatusInactive})
	assert.True(t, apperr.IsValidation(err))
}

func TestFetchByVisit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/reservations/visit/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "7" {
			reply(w, map[string]any{"reservationId": 7, "patientId": 1, "departmentId": 2, "status": "RESERVED", "reservedAt": "2025-04-02T09:30:00"})
			return
		}
		reply(w, nil)
	})
	c, _ := newClient(t, mux)
	backend := NewReservations(c).Backend()
	ctx := context.Background()

	rec, err := backend.FetchByVisit(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.KindReservation, rec.Kind())
	assert.Equal(t, int64(7), rec.VisitID())

	none, err := backend.FetchByVisit(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = backend.SaveByVisit(ctx, 7, models.EmergencyReception{})
	assert.True(t, apperr.IsValidation(err))
}

func TestStaffMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/staff", func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		var body map[string]any
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("staff")), &body))
		assert.Equal(t, "김의사", body["staffName"])
		assert.NotContains(t, body, "departmentName")

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		assert.Equal(t, "photo.png", header.Filename)
		assert.Equal(t, []byte("png"), data)

		body["staffId"] = 12
		body["photoUrl"] = "/files/photo.png"
		reply(w, body)
	})
	c, _ := newClient(t, mux)
	repo := NewStaff(c)

	got, err := repo.Create(context.Background(), models.Staff{
		Name:           "김의사",
		DepartmentID:   1,
		DepartmentName: "내과",
		PositionID:     2,
		Photo:          &models.Upload{Name: "photo.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ID)
	assert.Equal(t, "/files/photo.png", got.PhotoURL)
}
