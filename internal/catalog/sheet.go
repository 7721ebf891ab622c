package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	enc "github.com/KPRAHUL1/Roriri-Cafe/internal/encoding"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

var ErrNoHeader = errors.New("no header row with name and price columns")

const (
	colName        = "name"
	colPrice       = "price"
	colStock       = "stock"
	colCategory    = "category"
	colMinStock    = "min_stock"
	colDescription = "description"
	colImageURL    = "image_url"
)

// RowError describes a sheet row that was not imported. Row is 1-based.
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

type SheetRow struct {
	Row    int
	Params CreateParams
}

type Sheet struct {
	Charset string
	Rows    []SheetRow
	Invalid []RowError
}

// ParseSheet reads a product CSV in any common encoding, separated by commas
// or semicolons. Rows above the header are ignored.
func ParseSheet(r io.Reader) (*Sheet, error) {
	utf8r, charset, err := enc.Detect(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	raw, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = sniffDelimiter(string(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols, headerIdx := findHeader(rows)
	if cols == nil {
		return nil, ErrNoHeader
	}

	sheet := &Sheet{Charset: charset}

	for i, row := range rows[headerIdx+1:] {
		rowNum := headerIdx + i + 2

		if blank(row) {
			continue
		}

		params, err := parseRow(cols, row, reader.Comma)
		if err != nil {
			sheet.Invalid = append(sheet.Invalid, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}

		sheet.Rows = append(sheet.Rows, SheetRow{Row: rowNum, Params: params})
	}

	return sheet, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
func sniffDelimiter(s string) rune {
	line, _, _ := strings.Cut(s, "\n")
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}

	return ','
}

type colIndex map[string]int

func findHeader(rows [][]string) (colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			name = strings.ReplaceAll(name, " ", "_")

			if name != "" {
				cols[name] = i
			}
		}

		_, hasName := cols[colName]
		_, hasPrice := cols[colPrice]

		if hasName && hasPrice {
			return cols, rowIdx
		}
	}

	return nil, 0
}

func parseRow(cols colIndex, row []string, comma rune) (CreateParams, error) {
	params := CreateParams{
		Name:        cell(row, cols, colName),
		Category:    cell(row, cols, colCategory),
		Description: cell(row, cols, colDescription),
		ImageURL:    cell(row, cols, colImageURL),
	}

	priceStr := cell(row, cols, colPrice)
	if comma == ';' && !strings.Contains(priceStr, ".") {
		priceStr = strings.ReplaceAll(priceStr, ",", ".")
	}

	price, err := money.Parse(priceStr)
	if err != nil {
		return params, fmt.Errorf("price %q: %w", priceStr, err)
	}

	params.Price = price

	if params.Stock, err = intCell(row, cols, colStock); err != nil {
		return params, err
	}

	if params.MinStock, err = intCell(row, cols, colMinStock); err != nil {
		return params, err
	}

	if err := params.normalize(); err != nil {
		return params, err
	}

	return params, nil
}

func cell(row []string, cols colIndex, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func intCell(row []string, cols colIndex, name string) (int64, error) {
	s := cell(row, cols, name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a whole number", name, s)
	}

	return n, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
