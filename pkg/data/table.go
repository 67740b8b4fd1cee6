package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/credscore/pkg/score"
	"github.com/xuri/excelize/v2"
)

const byteOrderMark = "\ufeff"

// columnAliases maps a canonical column name to the header spellings that
// are accepted for it.
type columnAliases map[string][]string

// columns maps a canonical column name to its index in a row.
type columns map[string]int

// readRows loads a .csv or .xlsx file as raw rows, header first.
func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return readCSV(f)
	}
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// readXLSX returns the rows of the first sheet of the workbook.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

func headerKey(s string) string {
	return strings.ToLower(score.NormalizeKey(strings.TrimPrefix(s, byteOrderMark)))
}

// indexColumns locates every aliased column in header. Any missing required
// column is an error.
func indexColumns(header []string, aliases columnAliases, required ...string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		k := headerKey(h)
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}

	cols := make(columns, len(aliases))
	for name, names := range aliases {
		for _, n := range names {
			if i, ok := pos[headerKey(n)]; ok {
				cols[name] = i
				break
			}
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	return cols, nil
}

// cell returns the trimmed value of column name, or "" when the column is
// absent or the row is short.
func (c columns) cell(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// has reports whether the column was found in the header.
func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var errNoHeader = errors.New("file has no header row")
