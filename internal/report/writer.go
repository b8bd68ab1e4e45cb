package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Report"
	minColWidth  = 12
	maxColWidth  = 40
	colWidthPad  = 2
	moneyNumFmt  = 2
	defaultSheet = "Sheet1"
)

var ErrEmptyReport = errors.New("report has no columns")

// Write stores the table at path. A .csv extension selects CSV, anything
// else is written as xlsx.
func Write(path string, t Table) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := WriteCSV(f, t); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return WriteXLSX(path, t)
}

func WriteCSV(w io.Writer, t Table) error {
	if len(t.Header) == 0 {
		return ErrEmptyReport
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range t.Rows {
		values := make([]string, len(row))
		for i, c := range row {
			values[i] = c.Text
		}
		if err := cw.Write(values); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(path string, t Table) error {
	if len(t.Header) == 0 {
		return ErrEmptyReport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	widths := make([]int, len(t.Header))
	for i, name := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		widths[i] = len(name)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(t.Header), 1)
	if err := f.SetCellStyle(sheetName, first, last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for rowIdx, row := range t.Rows {
		for colIdx, c := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if c.Number.Valid {
				if err := f.SetCellFloat(sheetName, cell, c.Number.Decimal.InexactFloat64(), 2, 64); err != nil {
					return fmt.Errorf("write cell %s: %w", cell, err)
				}
				if err := f.SetCellStyle(sheetName, cell, cell, moneyStyle); err != nil {
					return fmt.Errorf("style cell %s: %w", cell, err)
				}
			} else if c.Text != "" {
				if err := f.SetCellStr(sheetName, cell, c.Text); err != nil {
					return fmt.Errorf("write cell %s: %w", cell, err)
				}
			}
			if colIdx < len(widths) && len(c.Text) > widths[colIdx] {
				widths[colIdx] = len(c.Text)
			}
		}
	}

	for i, w := range widths {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(min(max(w+colWidthPad, minColWidth), maxColWidth))
		if err := f.SetColWidth(sheetName, colName, colName, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}
