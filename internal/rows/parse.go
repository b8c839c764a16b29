package rows

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format (use .csv or .xlsx)")

// Cell is one column/value pair. Records keep cells in sheet column
// order because the normalizer's positional fallback depends on it.
type Cell struct {
	Column string
	Value  string
}

// Record is one spreadsheet row as an ordered sequence of cells.
type Record []Cell

// Parse decodes an uploaded spreadsheet into ordered records. The first
// row is treated as the header row. Format is chosen by file extension.
func Parse(filename string, data []byte) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return parseCSV(data)
	case ".xlsx", ".xlsm":
		return parseXLSX(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func parseCSV(data []byte) ([]Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // rows may be ragged

	raw, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return buildRecords(raw), nil
}

func parseXLSX(data []byte) ([]Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return buildRecords(raw), nil
}

// buildRecords pairs each data row with the header row, preserving
// column order. Fully blank rows are skipped; extra cells beyond the
// header width keep an empty column name so positional lookups still
// see them.
func buildRecords(raw [][]string) []Record {
	if len(raw) < 2 {
		return nil
	}

	headers := raw[0]
	records := make([]Record, 0, len(raw)-1)

	for _, row := range raw[1:] {
		blank := true
		rec := make(Record, 0, len(row))
		for i, v := range row {
			col := ""
			if i < len(headers) {
				col = strings.TrimSpace(headers[i])
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			rec = append(rec, Cell{Column: col, Value: v})
		}
		if blank {
			continue
		}
		records = append(records, rec)
	}

	return records
}
