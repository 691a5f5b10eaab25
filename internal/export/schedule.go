package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"shiftdraw/internal/services"
)

// ScheduleHeader is the header row of the schedule export.
var ScheduleHeader = []string{"休假時段", "組別", "對應牌", "人員"}

// ResultsHeader is the header row of the results export.
var ResultsHeader = []string{"組別", "牌", "人員"}

const scheduleSheet = "休假表"

// ScheduleXLSX renders the final schedule as an Excel workbook.
func ScheduleXLSX(entries []services.ScheduleEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(scheduleSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#B91C1C"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	pendingStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "#9CA3AF"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create placeholder style: %w", err)
	}

	if err := f.SetSheetRow(scheduleSheet, "A1", &ScheduleHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(scheduleSheet, "A1", "D1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, e := range entries {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := []interface{}{e.ShiftName, e.GroupLabel, e.CardLabel, e.PersonName}
		if err := f.SetSheetRow(scheduleSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if !e.Drawn {
			person, _ := excelize.CoordinatesToCellName(4, row)
			if err := f.SetCellStyle(scheduleSheet, person, person, pendingStyle); err != nil {
				return nil, fmt.Errorf("failed to style row %d: %w", row, err)
			}
		}
	}

	for col, width := range []float64{24, 12, 12, 20} {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(scheduleSheet, name, name, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ScheduleCSV writes the final schedule as CSV with a UTF-8 BOM so Excel
// opens it with the right encoding.
func ScheduleCSV(w io.Writer, entries []services.ScheduleEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.ShiftName, e.GroupLabel, e.CardLabel, e.PersonName})
	}
	return writeCSV(w, ScheduleHeader, rows)
}

// ResultsCSV writes the grouped result listing as CSV.
func ResultsCSV(w io.Writer, groups []services.GroupResults) error {
	rows := make([][]string, 0)
	for _, g := range groups {
		for _, r := range g.Results {
			rows = append(rows, []string{g.Label, r.Card.String(), r.PersonName})
		}
	}
	return writeCSV(w, ResultsHeader, rows)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := w.Write([]byte("\xef\xbb\xbf")); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
