package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"hospops/internal/apperr"
	"hospops/internal/config"
	"hospops/internal/mockbackend"
	"hospops/internal/normalize"
	"hospops/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *mockbackend.Server {
	t.Helper()
	backend := mockbackend.New(nil)
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	t.Setenv(config.EnvReceptionBase, ts.URL)
	t.Setenv(config.EnvAdminBase, ts.URL)
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "none.yaml"))
	return backend
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListAndSearch(t *testing.T) {
	backend := newTestBackend(t)
	_, err := backend.Seed("departments", normalize.DepartmentWire{DepartmentName: "내과", Location: "본관 2층"})
	require.NoError(t, err)
	_, err = backend.Seed("departments", normalize.DepartmentWire{DepartmentName: "외과", Location: "별관 지하"})
	require.NoError(t, err)

	out, err := run(t, "list", "departments")
	require.NoError(t, err)
	assert.Contains(t, out, "내과")
	assert.Contains(t, out, "외과")
	assert.Contains(t, out, `"floor_no": "2"`)

	out, err = run(t, "search", "departments", "외")
	require.NoError(t, err)
	assert.Contains(t, out, "외과")
	assert.NotContains(t, out, "내과")

	_, err = run(t, "list", "wards")
	assert.ErrorContains(t, err, "unknown entity")
}

func TestStatusAndCancel(t *testing.T) {
	backend := newTestBackend(t)
	id, err := backend.Seed("reservations", normalize.ReservationWire{
		VisitFields: normalize.VisitFields{PatientID: 1, DepartmentID: 1},
		ReservedAt:  "2026-11-02T09:30:00",
	})
	require.NoError(t, err)
	sid := strconv.FormatInt(id, 10)

	out, err := run(t, "cancel", "reservations", sid, "--code", "PATIENT", "--reason", "일정 변경")
	require.NoError(t, err)
	assert.Contains(t, out, "canceled")
	assert.Equal(t, 1, backend.Calls("PATCH /api/reservations/:id/status"))

	_, err = run(t, "cancel", "reservations", sid)
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, 1, backend.Calls("PATCH /api/reservations/:id/status"))
}

func TestStatusAction(t *testing.T) {
	backend := newTestBackend(t)
	id, err := backend.Seed("receptions", mockbackend.Record{"patientId": 1, "departmentId": 1})
	require.NoError(t, err)

	out, err := run(t, "status", "receptions", strconv.FormatInt(id, 10), "call")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "CALLED"`)

	_, err = run(t, "status", "receptions", strconv.FormatInt(id, 10), "bill")
	assert.True(t, apperr.IsValidation(err))
}

func TestSubresourceFetch(t *testing.T) {
	backend := newTestBackend(t)
	vid, err := backend.Seed("receptions", mockbackend.Record{"patientId": 1, "departmentId": 1})
	require.NoError(t, err)

	out, err := run(t, "subresource", "fetch", "emergency-receptions", strconv.FormatInt(vid, 10))
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	_, err = backend.Seed("emergency-receptions", normalize.EmergencyWire{
		ReceptionID: vid,
		VisitFields: normalize.VisitFields{PatientID: 1, DepartmentID: 1},
		TriageLevel: 3,
	})
	require.NoError(t, err)
	out, err = run(t, "subresource", "fetch", "emergency-receptions", strconv.FormatInt(vid, 10))
	require.NoError(t, err)
	assert.Contains(t, out, `"triage_level": 3`)

	_, err = run(t, "subresource", "fetch", "wards", "1")
	assert.ErrorContains(t, err, "unknown kind")
}

func TestAuditExport(t *testing.T) {
	backend := newTestBackend(t)
	id, err := backend.Seed("receptions", mockbackend.Record{"patientId": 1, "departmentId": 1})
	require.NoError(t, err)
	_, err = run(t, "status", "receptions", strconv.FormatInt(id, 10), "call")
	require.NoError(t, err)

	dir := t.TempDir()
	out, err := run(t, "audit", "export", "receptions", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 visits, 1 status changes")

	matches, err := filepath.Glob(filepath.Join(dir, "receptions_이력_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestClientsKeepSeparateCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := newTestBackend(t)
	_, err := backend.Seed("departments", normalize.DepartmentWire{DepartmentName: "내과"})
	require.NoError(t, err)
	_, err = backend.Seed("receptions", mockbackend.Record{"patientId": 1, "departmentId": 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis:\n  address: "+mr.Addr()+"\n"), 0o600))

	ctx := context.Background()
	a, err := newApp(ctx, path, false)
	require.NoError(t, err)
	defer a.Close()
	assert.NotSame(t, a.reception.Cache(), a.admin.Cache())

	_, err = a.repos.Departments.List(ctx)
	require.NoError(t, err)
	_, err = a.repos.Receptions.List(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("hospops:admin:departments:list"))
	assert.True(t, mr.Exists("hospops:reception:receptions:list"))

	a.reception.Invalidate(ctx, repository.EntityDepartments)
	assert.True(t, mr.Exists("hospops:admin:departments:list"), "the admin cache is not touched")
}
