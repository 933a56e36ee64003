package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"hospops/internal/normalize"

	"github.com/rs/zerolog"
)

var (
	historyColumns = []string{"방문ID", "이전 상태", "변경 상태", "변경자", "변경 시각", "사유 코드", "사유"}
	auditColumns   = []string{"방문ID", "작업", "작업자", "발생 시각", "사유 코드", "사유"}
)

// Report is a finished export.
type Report struct {
	Filename string
	Data     []byte
	Visits   int
	History  int
	Logs     int
	// Failed lists visits whose trail could not be read; they are skipped.
	Failed []int64
}

// Service exports visit trails to a workbook with one sheet for status
// history and one for audit logs.
type Service struct {
	writer func() ExcelWriter
	sender DocumentSender
	logger *zerolog.Logger
	now    func() time.Time
}

// NewService creates an export service. A nil writer factory uses excelize;
// sender may be nil.
func NewService(writerFactory func() ExcelWriter, sender DocumentSender, logger *zerolog.Logger) *Service {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "audit").Logger()
	return &Service{writer: writerFactory, sender: sender, logger: &l, now: time.Now}
}

// Export reads the trails of ids from src and renders the workbook.
func (s *Service) Export(ctx context.Context, entity string, src TrailSource, ids []int64) (*Report, error) {
	excel := s.writer()
	if excel == nil {
		return nil, fmt.Errorf("failed to create excel writer")
	}
	defer excel.Close()

	report := &Report{Filename: GenerateFilename(entity, s.now())}
	var historyRows, auditRows [][]any

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		history, err := src.History(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Int64("visit_id", id).Msg("read status history")
			report.Failed = append(report.Failed, id)
			continue
		}
		logs, err := src.AuditLogs(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Int64("visit_id", id).Msg("read audit logs")
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Visits++

		for _, h := range history {
			historyRows = append(historyRows, []any{
				id, string(h.FromStatus), string(h.ToStatus), h.ChangedBy,
				normalize.FormatTime(&h.ChangedAt), h.ReasonCode, h.ReasonText,
			})
		}
		for _, l := range logs {
			auditRows = append(auditRows, []any{
				id, l.Action, l.ActorID, normalize.FormatTime(&l.OccurredAt), l.ReasonCode, l.ReasonText,
			})
		}
	}
	report.History = len(historyRows)
	report.Logs = len(auditRows)

	if err := writeSheet(excel, SheetHistory, historyColumns, historyRows); err != nil {
		return nil, err
	}
	if err := writeSheet(excel, SheetAudit, auditColumns, auditRows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return nil, fmt.Errorf("save excel: %w", err)
	}
	report.Data = buf.Bytes()

	s.logger.Info().
		Str("entity", entity).
		Int("visits", report.Visits).
		Int("history_rows", report.History).
		Int("audit_rows", report.Logs).
		Msg("trail exported")
	return report, nil
}

// Send delivers a report through the configured sender.
func (s *Service) Send(ctx context.Context, report *Report, caption string) error {
	if s.sender == nil {
		return fmt.Errorf("no document sender configured")
	}
	if err := s.sender.SendDocument(ctx, report.Filename, bytes.NewReader(report.Data), caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Info().Str("filename", report.Filename).Msg("audit report sent")
	return nil
}

func writeSheet(excel ExcelWriter, name string, columns []string, rows [][]any) error {
	if err := excel.AddSheet(name); err != nil {
		return err
	}
	if err := excel.WriteHeader(columns); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}
	for _, row := range rows {
		if err := excel.WriteRow(row); err != nil {
			return fmt.Errorf("write row of %s: %w", name, err)
		}
	}
	return nil
}
