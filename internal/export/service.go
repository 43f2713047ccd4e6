package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nokoro/statement-tracker/internal/repository"
)

// Service produces XLSX bytes from stored statements.
type Service struct {
	statements repository.StatementRepository
	logger     *slog.Logger
}

func NewService(statements repository.StatementRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{statements: statements, logger: logger}
}

// exportPageSize bounds how many rows one workbook carries.
const exportPageSize = 500

// ExportXLSX returns an XLSX workbook of all stored statements.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Statements"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Filename",
		"Issuer",
		"Cardholder Name",
		"Card Last Four",
		"Billing Period Start",
		"Billing Period End",
		"Payment Due Date",
		"Total Amount Due",
		"Extraction Method",
		"Overall Confidence",
		"Has Errors",
		"Created At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	total := 0
	for offset := 0; ; offset += exportPageSize {
		recs, err := s.statements.List(ctx, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("query statements: %w", err)
		}
		if len(recs) == 0 {
			break
		}
		total += len(recs)

		for _, st := range recs {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(sheet, cell, v)
			}

			write(1, st.Filename)
			write(2, st.Issuer)
			write(3, deref(st.CardholderName))
			write(4, deref(st.CardLastFour))
			write(5, fmtDate(st.BillingPeriodStart))
			write(6, fmtDate(st.BillingPeriodEnd))
			write(7, fmtDate(st.PaymentDueDate))
			if st.TotalAmountDue != nil {
				write(8, st.TotalAmountDue.String())
			} else {
				write(8, "")
			}
			write(9, st.ExtractionMethod)
			write(10, st.OverallConfidence)
			write(11, st.HasErrors)
			write(12, st.CreatedAt.Format("2006-01-02 15:04:05"))
			row++
		}
		if len(recs) < exportPageSize {
			break
		}
	}

	// Widen the text-heavy columns
	_ = f.SetColWidth(sheet, "A", "A", 32) // filename
	_ = f.SetColWidth(sheet, "B", "C", 20)
	_ = f.SetColWidth(sheet, "E", "G", 18) // dates
	_ = f.SetColWidth(sheet, "I", "I", 26) // method

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", total,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
