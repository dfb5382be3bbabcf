package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"yoyaku/internal/metrics"
	"yoyaku/internal/models"
)

var exportColumns = []string{"id", "name", "start_at", "end_at", "minutes", "status", "fee", "memo", "created_at"}

func exportRow(b *models.Booking) []string {
	fee := ""
	if b.Fee != nil {
		fee = strconv.FormatInt(*b.Fee, 10)
	}
	return []string{
		strconv.FormatInt(b.ID, 10),
		b.Name,
		b.StartAt.Format(time.RFC3339),
		b.EndAt.Format(time.RFC3339),
		strconv.Itoa(b.Minutes),
		b.Status,
		fee,
		b.Memo,
		b.CreatedAt.Format(time.RFC3339),
	}
}

// handleExportCSV streams all bookings as CSV, newest start first.
// GET /export.csv
func (s *HTTPServer) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_csv")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.svc.Export(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=bookings.csv")

	writer := csv.NewWriter(w)
	_ = writer.Write(exportColumns)
	for i := range bookings {
		_ = writer.Write(exportRow(&bookings[i]))
	}
	writer.Flush()
}

// handleExportExcel renders the same table as a spreadsheet.
// GET /export.xlsx
func (s *HTTPServer) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_xlsx")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.svc.Export(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	file := excelize.NewFile()
	defer file.Close()
	const sheet = "Bookings"
	file.SetSheetName("Sheet1", sheet)

	writeCells := func(row int, values []string) {
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				continue
			}
			_ = file.SetCellValue(sheet, cell, v)
		}
	}

	writeCells(1, exportColumns)
	if style, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}
	for i := range bookings {
		writeCells(i+2, exportRow(&bookings[i]))
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=bookings.xlsx")
	if err := file.Write(w); err != nil {
		s.log.Error().Err(err).Msg("failed to write xlsx export")
	}
}
