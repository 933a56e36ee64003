package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"hospops/internal/models"
)

// TrailSource reads the server-side trails of visit records.
type TrailSource interface {
	History(ctx context.Context, id int64) ([]models.StatusHistory, error)
	AuditLogs(ctx context.Context, id int64) ([]models.AuditLog, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []any) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// SaveToFile writes the Excel file to disk.
	SaveToFile(path string) error

	Close() error
}

// DocumentSender delivers a finished report, e.g. to the ops chat.
type DocumentSender interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Sheet names.
const (
	SheetHistory = "상태이력"
	SheetAudit   = "감사로그"
)

// GenerateFilename creates a filename like "receptions_이력_20261019.xlsx".
func GenerateFilename(entity string, t time.Time) string {
	return fmt.Sprintf("%s_이력_%s.xlsx", entity, t.Format("20060102"))
}
