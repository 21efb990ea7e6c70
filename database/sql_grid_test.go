package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteGrid(t *testing.T) *SQLGrid {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	grid := NewSQLGrid(db)
	require.NoError(t, grid.EnsureSchema(context.Background()))
	return grid
}

func TestSQLGrid_WriteAndRead(t *testing.T) {
	grid := newSQLiteGrid(t)
	ctx := context.Background()

	last, err := grid.LastRow(ctx, "listData")
	require.NoError(t, err)
	assert.Equal(t, 0, last)

	require.NoError(t, grid.WriteRow(ctx, "listData", 1, []Cell{TextCell("date"), TextCell("total")}))
	require.NoError(t, grid.WriteRow(ctx, "listData", 2, []Cell{TextCell("2026-10-16"), IntCell(950), EmptyCell(), IntCell(3)}))

	last, err = grid.LastRow(ctx, "listData")
	require.NoError(t, err)
	assert.Equal(t, 2, last)

	rows, err := grid.ReadRows(ctx, "listData", 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "date", rows[0][0].Raw)
	require.Len(t, rows[1], 4)
	assert.True(t, rows[1][2].IsEmpty(), "gaps come back as empty cells")
	n, err := rows[1][1].Int()
	require.NoError(t, err)
	assert.Equal(t, int64(950), n)

	// other sheets are independent
	last, err = grid.LastRow(ctx, "broadcastData")
	require.NoError(t, err)
	assert.Equal(t, 0, last)
}

func TestSQLGrid_WriteRowOverwritesOnlyThatRow(t *testing.T) {
	grid := newSQLiteGrid(t)
	ctx := context.Background()

	require.NoError(t, grid.WriteRow(ctx, "s", 1, []Cell{TextCell("a"), TextCell("b"), TextCell("c")}))
	require.NoError(t, grid.WriteRow(ctx, "s", 2, []Cell{TextCell("x")}))
	require.NoError(t, grid.WriteRow(ctx, "s", 1, []Cell{TextCell("z")}))

	rows, err := grid.ReadRows(ctx, "s", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []Cell{TextCell("z")}, rows[0])
	assert.Equal(t, []Cell{TextCell("x")}, rows[1])
}

func TestSQLGrid_ReplaceRowsClearsTail(t *testing.T) {
	grid := newSQLiteGrid(t)
	ctx := context.Background()

	require.NoError(t, grid.WriteRow(ctx, "b", 1, []Cell{TextCell("id")}))
	require.NoError(t, grid.ReplaceRows(ctx, "b", 2, [][]Cell{{IntCell(1)}, {IntCell(2)}, {IntCell(3)}}))
	require.NoError(t, grid.ReplaceRows(ctx, "b", 2, [][]Cell{{IntCell(7)}}))

	rows, err := grid.ReadRows(ctx, "b", 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "id", rows[0][0].Raw)
	assert.Equal(t, "7", rows[1][0].Raw)

	require.NoError(t, grid.ReplaceRows(ctx, "b", 2, nil))
	last, err := grid.LastRow(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, last, "header survives an empty replace")
}

func TestSQLGrid_InvalidRows(t *testing.T) {
	grid := newSQLiteGrid(t)
	ctx := context.Background()

	var se *StoreWriteError
	assert.True(t, errors.As(grid.WriteRow(ctx, "s", 0, nil), &se))
	assert.True(t, errors.As(grid.ReplaceRows(ctx, "s", 0, nil), &se))
	_, err := grid.ReadRows(ctx, "s", 0, 1)
	assert.True(t, errors.As(err, &se))

	rows, err := grid.ReadRows(ctx, "s", 5, 2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLGrid_FailedInsertRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	grid := NewSQLGrid(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM grid_cells").
		WithArgs("listData", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO grid_cells").
		WithArgs("listData", 5, 1, "int", "10").
		WillReturnError(errors.New("warehouse suspended"))
	mock.ExpectRollback()

	err = grid.WriteRow(context.Background(), "listData", 5, []Cell{IntCell(10)})

	var se *StoreWriteError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "listData", se.Table)
	assert.Equal(t, "write", se.Op)
	assert.Contains(t, err.Error(), "warehouse suspended")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGrid_LastRowUnreachable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	grid := NewSQLGrid(sqlx.NewDb(db, "sqlmock"))

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("listData").
		WillReturnError(errors.New("connection refused"))

	_, err = grid.LastRow(context.Background(), "listData")

	var se *StoreWriteError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "last row", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}
