package database

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Widest column the grid reads or clears. Both tables fit well inside it.
const lastColumn = "Z"

// SheetsGrid stores each table as a sheet (tab) of one Google spreadsheet.
type SheetsGrid struct {
	svc           *sheets.Service
	spreadsheetID string
}

func NewSheetsGrid(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsGrid, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}
	return &SheetsGrid{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *SheetsGrid) LastRow(ctx context.Context, sheet string) (int, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, quoteSheet(sheet)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, storeErr(sheet, "last row", err)
	}
	return len(resp.Values), nil
}

func (g *SheetsGrid) ReadRows(ctx context.Context, sheet string, from, to int) ([][]Cell, error) {
	if from < 1 {
		return nil, storeErr(sheet, "read", errors.Errorf("invalid start row %d", from))
	}
	rng := fmt.Sprintf("%s!A%d:%s", quoteSheet(sheet), from, lastColumn)
	if to > 0 {
		if to < from {
			return [][]Cell{}, nil
		}
		rng += fmt.Sprint(to)
	}

	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).
		MajorDimension("ROWS").
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, storeErr(sheet, "read", err)
	}

	rows := make([][]Cell, len(resp.Values))
	for i, values := range resp.Values {
		rows[i] = make([]Cell, len(values))
		for j, v := range values {
			rows[i][j] = cellFromValue(v)
		}
	}
	return rows, nil
}

func (g *SheetsGrid) WriteRow(ctx context.Context, sheet string, row int, cells []Cell) error {
	if row < 1 {
		return storeErr(sheet, "write", errors.Errorf("invalid row %d", row))
	}
	vr := &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]interface{}{rowValues(cells)},
	}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, fmt.Sprintf("%s!A%d", quoteSheet(sheet), row), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return storeErr(sheet, "write", err)
}

// ReplaceRows is two API calls; a failure between them leaves the range cleared.
func (g *SheetsGrid) ReplaceRows(ctx context.Context, sheet string, from int, rows [][]Cell) error {
	if from < 1 {
		return storeErr(sheet, "replace", errors.Errorf("invalid start row %d", from))
	}

	clearRange := fmt.Sprintf("%s!A%d:%s", quoteSheet(sheet), from, lastColumn)
	if _, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return storeErr(sheet, "replace", err)
	}
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, cells := range rows {
		values[i] = rowValues(cells)
	}
	vr := &sheets.ValueRange{MajorDimension: "ROWS", Values: values}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, fmt.Sprintf("%s!A%d", quoteSheet(sheet), from), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return storeErr(sheet, "replace", err)
}

func rowValues(cells []Cell) []interface{} {
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c.Value()
	}
	return values
}

func cellFromValue(v interface{}) Cell {
	switch x := v.(type) {
	case nil:
		return EmptyCell()
	case string:
		return TextCell(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return IntCell(int64(x))
		}
		return FloatCell(x)
	case bool:
		return TextCell(fmt.Sprint(x))
	default:
		return TextCell(fmt.Sprint(x))
	}
}

// quoteSheet wraps names that A1 notation cannot take bare.
func quoteSheet(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
