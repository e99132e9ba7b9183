package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/billguard/internal/repository"
)

const (
	billsSheet  = "Bills"
	issuesSheet = "Issues"
)

// Service is a tiny façade over the bill repository that produces XLSX bytes for exports.
type Service struct {
	bills  repository.BillRepository
	logger *slog.Logger
}

func NewService(bills repository.BillRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{bills: bills, logger: logger}
}

// ExportHistoryXLSX returns a workbook with one row per bill and one row per issue.
func (s *Service) ExportHistoryXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	recs := s.bills.GetAll(ctx)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	// NewFile starts with Sheet1; rename it rather than leaving an empty tab.
	if err := f.SetSheetName("Sheet1", billsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	activeIndex, _ := f.GetSheetIndex(billsSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, billsSheet, 1, []any{
		"Upload Date",
		"Hospital",
		"Date of Service",
		"Currency",
		"Total Amount",
		"Patient Pays",
		"Potential Savings",
		"Status",
		"Insurance Status",
		"Confidence",
		"Issue Count",
		"Bill ID",
	})
	writeRow(f, issuesSheet, 1, []any{
		"Bill ID",
		"Hospital",
		"Title",
		"Category",
		"Severity",
		"Estimated Overcharge",
		"Description",
	})

	issueRow := 2
	for i, r := range recs {
		writeRow(f, billsSheet, i+2, []any{
			r.UploadDate,
			r.HospitalName,
			r.DateOfService,
			r.Currency,
			r.TotalAmount,
			r.PatientPays(),
			r.TotalPotentialSavings(),
			string(r.Status),
			string(r.Insurance.Status),
			r.ConfidenceScore,
			len(r.Issues),
			r.ID,
		})
		for _, is := range r.Issues {
			writeRow(f, issuesSheet, issueRow, []any{
				r.ID,
				r.HospitalName,
				is.Title,
				string(is.Category),
				string(is.Severity),
				is.EstimatedOvercharge,
				truncate(is.Description, 500),
			})
			issueRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(billsSheet, "A", "A", 12) // upload date
	_ = f.SetColWidth(billsSheet, "B", "B", 32) // hospital
	_ = f.SetColWidth(billsSheet, "C", "D", 14)
	_ = f.SetColWidth(billsSheet, "E", "G", 16) // amounts
	_ = f.SetColWidth(billsSheet, "H", "I", 16)
	_ = f.SetColWidth(billsSheet, "L", "L", 38) // id
	_ = f.SetColWidth(issuesSheet, "A", "A", 38)
	_ = f.SetColWidth(issuesSheet, "B", "C", 30)
	_ = f.SetColWidth(issuesSheet, "G", "G", 60) // description

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"bills", len(recs),
		"issues", issueRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
