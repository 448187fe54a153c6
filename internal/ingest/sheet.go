package ingest

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// row is one data row keyed by its (trimmed, lower-cased) header.
type row struct {
	num    int // 1-based sheet row
	values map[string]string
}

// readSheet returns the data rows of the workbook's first sheet. The first
// non-empty row is the header; missing required headers fail the whole file.
func readSheet(r io.Reader, required ...string) ([]row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, nil
	}

	header := make([]string, len(rows[start]))
	seen := make(map[string]bool, len(header))
	for i, h := range rows[start] {
		header[i] = key(h)
		seen[header[i]] = true
	}
	for _, h := range required {
		if !seen[key(h)] {
			return nil, fmt.Errorf("sheet %q: missing column %q", sheets[0], h)
		}
	}

	out := make([]row, 0, len(rows)-start-1)
	for i := start + 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		rw := row{num: i + 1, values: make(map[string]string, len(header))}
		for j, cell := range rows[i] {
			if j < len(header) && header[j] != "" {
				rw.values[header[j]] = strings.TrimSpace(cell)
			}
		}
		out = append(out, rw)
	}
	return out, nil
}

func key(h string) string { return strings.ToLower(strings.TrimSpace(h)) }

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func (r row) str(col string) string { return r.values[key(col)] }

func (r row) whole(col string) (int64, error) {
	v := r.str(col)
	if v == "" {
		return 0, fmt.Errorf("%s is empty", col)
	}
	// numeric cells can come back as "12.0"
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%s: %q is not a whole number", col, v)
	}
	return d.IntPart(), nil
}

func (r row) optWhole(col string) (int64, error) {
	if r.str(col) == "" {
		return 0, nil
	}
	return r.whole(col)
}

func (r row) money(col string) (decimal.Decimal, error) {
	v := strings.ReplaceAll(r.str(col), ",", "")
	if v == "" {
		return decimal.Zero, fmt.Errorf("%s is empty", col)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", col, v)
	}
	return d, nil
}

func (r row) rate(col string) (float64, error) {
	v := r.str(col)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", col, v)
	}
	return f, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1-2-06",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"02-01-2006",
	"2 Jan 2006",
}

// date parses a date cell, falling back to def when the cell is empty.
// Unformatted date cells arrive as Excel serial numbers.
func (r row) date(col string, def time.Time) (time.Time, error) {
	v := r.str(col)
	if v == "" {
		return def, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: unrecognised date %q", col, v)
}
