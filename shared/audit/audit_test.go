package audit

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"hospops/internal/models"
	"hospops/internal/visit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	history map[int64][]models.StatusHistory
	logs    map[int64][]models.AuditLog
	broken  map[int64]bool
}

func (f *fakeSource) History(_ context.Context, id int64) ([]models.StatusHistory, error) {
	if f.broken[id] {
		return nil, errors.New("backend down")
	}
	return f.history[id], nil
}

func (f *fakeSource) AuditLogs(_ context.Context, id int64) ([]models.AuditLog, error) {
	return f.logs[id], nil
}

type mockDocSender struct {
	mock.Mock
}

func (m *mockDocSender) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	body, _ := io.ReadAll(data)
	args := m.Called(filename, len(body) > 0, caption)
	return args.Error(0)
}

func sampleSource() *fakeSource {
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	return &fakeSource{
		history: map[int64][]models.StatusHistory{
			1: {
				{VisitID: 1, FromStatus: visit.StatusWaiting, ToStatus: visit.StatusCalled, ChangedBy: "nurse-1", ChangedAt: at},
				{VisitID: 1, FromStatus: visit.StatusCalled, ToStatus: visit.StatusInProgress, ChangedBy: "dr-2", ChangedAt: at.Add(time.Minute)},
			},
		},
		logs: map[int64][]models.AuditLog{
			1: {{VisitID: 1, Action: "CREATE", ActorID: "nurse-1", OccurredAt: at}},
		},
		broken: map[int64]bool{2: true},
	}
}

func newTestService(sender DocumentSender) *Service {
	s := NewService(nil, sender, nil)
	s.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestExportWritesBothSheets(t *testing.T) {
	s := newTestService(nil)
	report, err := s.Export(context.Background(), "receptions", sampleSource(), []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, "receptions_이력_20261019.xlsx", report.Filename)
	assert.Equal(t, 1, report.Visits)
	assert.Equal(t, 2, report.History)
	assert.Equal(t, 1, report.Logs)
	assert.Equal(t, []int64{2}, report.Failed)

	f, err := excelize.OpenReader(bytes.NewReader(report.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetHistory, SheetAudit}, f.GetSheetList())

	rows, err := f.GetRows(SheetHistory)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, historyColumns, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "WAITING", rows[1][1])
	assert.Equal(t, "IN_PROGRESS", rows[2][2])

	rows, err = f.GetRows(SheetAudit)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CREATE", rows[1][1])
}

func TestExportEmptyStillHasHeaders(t *testing.T) {
	report, err := newTestService(nil).Export(context.Background(), "reservations", &fakeSource{}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(report.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetAudit)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestExportStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestService(nil).Export(ctx, "receptions", sampleSource(), []int64{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSend(t *testing.T) {
	sender := new(mockDocSender)
	sender.On("SendDocument", "receptions_이력_20261019.xlsx", true, "접수 이력").Return(nil).Once()

	s := newTestService(sender)
	report, err := s.Export(context.Background(), "receptions", sampleSource(), []int64{1})
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), report, "접수 이력"))
	sender.AssertExpectations(t)

	assert.Error(t, newTestService(nil).Send(context.Background(), report, ""))
}

func TestSheetNameTruncated(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	require.NoError(t, w.AddSheet("가나다라마바사아자차카타파하가나다라마바사아자차카타파하가나다라마바사"))
	ew := w.(*ExcelizeWriter)
	assert.Len(t, []rune(ew.currentSheet), maxSheetName)
}
