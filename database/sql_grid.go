package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const createGridCells = `
CREATE TABLE IF NOT EXISTS grid_cells (
	sheet_name VARCHAR(128) NOT NULL,
	row_num INTEGER NOT NULL,
	col_num INTEGER NOT NULL,
	cell_type VARCHAR(8) NOT NULL,
	raw_value VARCHAR(4096) NOT NULL,
	PRIMARY KEY (sheet_name, row_num, col_num)
)`

// Quoted lowercase aliases keep scans working on snowflake, which upper-cases
// unquoted column names in result sets.
const selectCells = `
SELECT row_num AS "row_num", col_num AS "col_num", cell_type AS "cell_type", raw_value AS "raw_value"
FROM grid_cells
WHERE sheet_name = ? AND row_num >= ? AND row_num <= ?
ORDER BY row_num, col_num`

const insertCell = `INSERT INTO grid_cells (sheet_name, row_num, col_num, cell_type, raw_value) VALUES (?, ?, ?, ?, ?)`

type cellRow struct {
	Row  int    `db:"row_num"`
	Col  int    `db:"col_num"`
	Type string `db:"cell_type"`
	Raw  string `db:"raw_value"`
}

// SQLGrid keeps every sheet in one grid_cells table, one row per non-empty cell.
type SQLGrid struct {
	db *sqlx.DB
}

func NewSQLGrid(db *sqlx.DB) *SQLGrid {
	return &SQLGrid{db: db}
}

func (g *SQLGrid) EnsureSchema(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, createGridCells)
	return errors.Wrap(err, "create grid_cells")
}

func (g *SQLGrid) LastRow(ctx context.Context, sheet string) (int, error) {
	var last int
	q := g.db.Rebind(`SELECT COALESCE(MAX(row_num), 0) FROM grid_cells WHERE sheet_name = ?`)
	if err := g.db.GetContext(ctx, &last, q, sheet); err != nil {
		return 0, storeErr(sheet, "last row", err)
	}
	return last, nil
}

func (g *SQLGrid) ReadRows(ctx context.Context, sheet string, from, to int) ([][]Cell, error) {
	if from < 1 {
		return nil, storeErr(sheet, "read", errors.Errorf("invalid start row %d", from))
	}
	if to <= 0 {
		last, err := g.LastRow(ctx, sheet)
		if err != nil {
			return nil, err
		}
		to = last
	}
	if to < from {
		return [][]Cell{}, nil
	}

	var cells []cellRow
	if err := g.db.SelectContext(ctx, &cells, g.db.Rebind(selectCells), sheet, from, to); err != nil {
		return nil, storeErr(sheet, "read", err)
	}

	rows := make([][]Cell, to-from+1)
	for _, c := range cells {
		i := c.Row - from
		for len(rows[i]) < c.Col {
			rows[i] = append(rows[i], EmptyCell())
		}
		rows[i][c.Col-1] = Cell{Type: CellType(c.Type), Raw: c.Raw}
	}

	// the last row may have been removed between LastRow and the select
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (g *SQLGrid) WriteRow(ctx context.Context, sheet string, row int, cells []Cell) error {
	if row < 1 {
		return storeErr(sheet, "write", errors.Errorf("invalid row %d", row))
	}
	return g.inTx(ctx, sheet, "write", func(tx *sqlx.Tx) error {
		del := tx.Rebind(`DELETE FROM grid_cells WHERE sheet_name = ? AND row_num = ?`)
		if _, err := tx.ExecContext(ctx, del, sheet, row); err != nil {
			return err
		}
		return insertRow(ctx, tx, sheet, row, cells)
	})
}

func (g *SQLGrid) ReplaceRows(ctx context.Context, sheet string, from int, rows [][]Cell) error {
	if from < 1 {
		return storeErr(sheet, "replace", errors.Errorf("invalid start row %d", from))
	}
	return g.inTx(ctx, sheet, "replace", func(tx *sqlx.Tx) error {
		del := tx.Rebind(`DELETE FROM grid_cells WHERE sheet_name = ? AND row_num >= ?`)
		if _, err := tx.ExecContext(ctx, del, sheet, from); err != nil {
			return err
		}
		for i, cells := range rows {
			if err := insertRow(ctx, tx, sheet, from+i, cells); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *SQLGrid) inTx(ctx context.Context, sheet, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(sheet, op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return storeErr(sheet, op, err)
	}
	return storeErr(sheet, op, tx.Commit())
}

func insertRow(ctx context.Context, tx *sqlx.Tx, sheet string, row int, cells []Cell) error {
	ins := tx.Rebind(insertCell)
	for i, c := range cells {
		if c.IsEmpty() {
			continue
		}
		if _, err := tx.ExecContext(ctx, ins, sheet, row, i+1, string(c.Type), c.Raw); err != nil {
			return errors.Wrapf(err, "insert row %d col %d", row, i+1)
		}
	}
	return nil
}
