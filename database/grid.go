package database

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

type CellType string

const (
	CellEmpty CellType = "empty"
	CellText  CellType = "text"
	CellInt   CellType = "int"
	CellFloat CellType = "float"
	CellDate  CellType = "date"

	dateLayout = "2006-01-02"
)

// Cell is a typed grid value. Raw always holds the canonical text form.
type Cell struct {
	Type CellType
	Raw  string
}

func EmptyCell() Cell { return Cell{Type: CellEmpty} }

func TextCell(s string) Cell {
	if s == "" {
		return EmptyCell()
	}
	return Cell{Type: CellText, Raw: s}
}

func IntCell(n int64) Cell { return Cell{Type: CellInt, Raw: strconv.FormatInt(n, 10)} }

func FloatCell(f float64) Cell {
	return Cell{Type: CellFloat, Raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

func DateCell(t time.Time) Cell { return Cell{Type: CellDate, Raw: t.Format(dateLayout)} }

func (c Cell) IsEmpty() bool { return c.Type == CellEmpty || c.Type == "" }

// Int accepts integral float text too, since spreadsheets return every number as a float.
func (c Cell) Int() (int64, error) {
	if c.IsEmpty() {
		return 0, errors.New("empty cell")
	}
	if n, err := strconv.ParseInt(c.Raw, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(c.Raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, errors.Errorf("cell %q is not an integer", c.Raw)
	}
	return int64(f), nil
}

func (c Cell) Float() (float64, error) {
	if c.IsEmpty() {
		return 0, errors.New("empty cell")
	}
	f, err := strconv.ParseFloat(c.Raw, 64)
	if err != nil {
		return 0, errors.Errorf("cell %q is not a number", c.Raw)
	}
	return f, nil
}

func (c Cell) Date() (time.Time, error) {
	t, err := time.Parse(dateLayout, c.Raw)
	if err != nil {
		return time.Time{}, errors.Errorf("cell %q is not a YYYY-MM-DD date", c.Raw)
	}
	return t, nil
}

// Value is the form handed to spreadsheet writes and CSV rendering.
func (c Cell) Value() interface{} {
	switch c.Type {
	case CellInt:
		if n, err := c.Int(); err == nil {
			return n
		}
	case CellFloat:
		if f, err := c.Float(); err == nil {
			return f
		}
	case CellEmpty, "":
		return ""
	}
	return c.Raw
}

func (c Cell) String() string { return c.Raw }

// Grid is a spreadsheet-like store addressed by 1-based row and column.
// Rows are written starting at column 1.
type Grid interface {
	// LastRow is the index of the last populated row, 0 for an empty sheet.
	LastRow(ctx context.Context, sheet string) (int, error)
	// ReadRows returns rows from..to inclusive; to <= 0 reads through the last row.
	ReadRows(ctx context.Context, sheet string, from, to int) ([][]Cell, error)
	WriteRow(ctx context.Context, sheet string, row int, cells []Cell) error
	// ReplaceRows clears every row from `from` down and writes rows starting there.
	ReplaceRows(ctx context.Context, sheet string, from int, rows [][]Cell) error
}

// StoreWriteError covers unreachable tables, failed writes and rows that do not
// match the expected schema.
type StoreWriteError struct {
	Table string
	Op    string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

func storeErr(table, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreWriteError
	if errors.As(err, &se) {
		return err
	}
	return &StoreWriteError{Table: table, Op: op, Err: err}
}
