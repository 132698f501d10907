package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"kasirinaja/backoffice/internal/domain"
)

const maxExportRows = 5000

var shiftExportHeader = []string{"ID", "Branch", "Opened By", "Opened At", "Opening Balance", "Closed By", "Closed At", "Closing Balance", "Remark", "Suspended"}

// ExportShifts renders the shift list as "csv" or "xlsx". Admin only.
func (s *Service) ExportShifts(ctx context.Context, format string) (domain.Export, error) {
	if _, err := s.admin(ctx); err != nil {
		return domain.Export{}, err
	}
	if format == "" {
		format = "csv"
	}

	listings, _, err := s.repo.ListShifts(ctx, 0, maxExportRows)
	if err != nil {
		return domain.Export{}, err
	}
	suffix := s.now().Format("20060102_150405")

	switch format {
	case "csv":
		data, err := exportShiftsCSV(listings)
		if err != nil {
			return domain.Export{}, err
		}
		return domain.Export{
			Filename:    fmt.Sprintf("shifts_%s.csv", suffix),
			ContentType: "text/csv; charset=utf-8",
			Body:        data,
		}, nil
	case "xlsx", "excel":
		data, err := exportShiftsXLSX(listings)
		if err != nil {
			return domain.Export{}, err
		}
		return domain.Export{
			Filename:    fmt.Sprintf("shifts_%s.xlsx", suffix),
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Body:        data,
		}, nil
	default:
		return domain.Export{}, ErrUnsupportedFormat
	}
}

func shiftExportRow(l domain.ShiftListing) []string {
	closedAt := ""
	closingBalance := ""
	if l.ClosedAt != nil {
		closedAt = l.ClosedAt.Format(time.RFC3339)
		closingBalance = l.ClosingBalance.StringFixed(2)
	}
	suspended := "no"
	if l.Suspended {
		suspended = "yes"
	}
	return []string{
		l.ID,
		l.BranchName,
		l.OpenedByName,
		l.OpenedAt.Format(time.RFC3339),
		l.OpeningBalance.StringFixed(2),
		l.ClosedByName,
		closedAt,
		closingBalance,
		l.Remark,
		suspended,
	}
}

func exportShiftsCSV(listings []domain.ShiftListing) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(shiftExportHeader)
	for _, l := range listings {
		_ = w.Write(shiftExportRow(l))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportShiftsXLSX(listings []domain.ShiftListing) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Shifts"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for c, v := range shiftExportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for r, l := range listings {
		for c, v := range shiftExportRow(l) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 44)
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "D", 22)
	_ = f.SetColWidth(sheet, "E", "E", 16)
	_ = f.SetColWidth(sheet, "F", "F", 18)
	_ = f.SetColWidth(sheet, "G", "G", 22)
	_ = f.SetColWidth(sheet, "H", "H", 16)
	_ = f.SetColWidth(sheet, "I", "I", 28)
	_ = f.SetColWidth(sheet, "J", "J", 10)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "J1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
