// Package sheet loads customer records from a spreadsheet or CSV file.
package sheet

import (
	"bank_onboarder/internal/domain"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyInput  = errors.New("input has no header row")
	ErrNoDataRows  = errors.New("input has no data rows")
	ErrNoKnownCols = errors.New("input header has no known columns")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile loads records from an .xlsx workbook (first sheet) or a CSV file.
func ReadFile(path string) ([]domain.CustomerRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return ReadCSV(bytes.NewReader(data))
}

func ReadCSV(r io.Reader) ([]domain.CustomerRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return toRecords(rows)
}

func readXLSX(path string) ([]domain.CustomerRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	return toRecords(rows)
}

// toRecords maps rows onto records by header name. Row numbers are 1-based
// data rows, so the first record after the header is row 1.
func toRecords(rows [][]string) ([]domain.CustomerRecord, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	header := make([]string, len(rows[0]))
	known := 0
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
		if domain.IsRecordColumn(header[i]) {
			known++
		}
	}
	if known == 0 {
		return nil, ErrNoKnownCols
	}

	var records []domain.CustomerRecord
	for idx, row := range rows[1:] {
		// Rows with only empty cells are still records; they fail validation.
		if len(row) == 0 {
			continue
		}
		rec := domain.CustomerRecord{Row: idx + 1}
		for i, name := range header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			rec.Set(name, value)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, ErrNoDataRows
	}
	return records, nil
}
