package database

import (
	"context"
	"time"

	"ckreport/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ReportStore maps growth and broadcast records onto their two tables.
type ReportStore struct {
	grid           Grid
	growthTable    string
	broadcastTable string
}

func NewReportStore(grid Grid, growthTable, broadcastTable string) *ReportStore {
	return &ReportStore{grid: grid, growthTable: growthTable, broadcastTable: broadcastTable}
}

func (s *ReportStore) GrowthTable() string    { return s.growthTable }
func (s *ReportStore) BroadcastTable() string { return s.broadcastTable }

// LastGrowthRecord returns the most recent growth row, or nil when the table
// holds nothing but (at most) the header row.
func (s *ReportStore) LastGrowthRecord(ctx context.Context) (*models.DailyGrowthRecord, error) {
	last, err := s.grid.LastRow(ctx, s.growthTable)
	if err != nil {
		return nil, err
	}
	if last <= 1 {
		return nil, nil
	}

	rows, err := s.grid.ReadRows(ctx, s.growthTable, last, last)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rec, err := growthFromCells(rows[0])
	if err != nil {
		return nil, &StoreWriteError{Table: s.growthTable, Op: "read", Err: errors.Wrapf(err, "row %d does not match the growth schema", last)}
	}
	return rec, nil
}

// AppendGrowthRow writes rec directly below the last populated row. An empty
// table gets its header first, so data never lands in row 1.
func (s *ReportStore) AppendGrowthRow(ctx context.Context, rec models.DailyGrowthRecord) (int, error) {
	last, err := s.ensureHeader(ctx, s.growthTable, models.GrowthColumns)
	if err != nil {
		return 0, err
	}
	row := last + 1
	if err := s.grid.WriteRow(ctx, s.growthTable, row, growthCells(rec)); err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"table": s.growthTable,
		"row":   row,
		"date":  rec.Day(),
	}).Info("appended growth row")
	return row, nil
}

// ReplaceBroadcastTable clears everything below the header and writes recs to
// rows 2..1+len(recs), so a shorter result set leaves no stale rows.
func (s *ReportStore) ReplaceBroadcastTable(ctx context.Context, recs []models.BroadcastRecord) error {
	if _, err := s.ensureHeader(ctx, s.broadcastTable, models.BroadcastColumns); err != nil {
		return err
	}
	rows := make([][]Cell, len(recs))
	for i, rec := range recs {
		rows[i] = broadcastCells(rec)
	}
	if err := s.grid.ReplaceRows(ctx, s.broadcastTable, 2, rows); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"table": s.broadcastTable,
		"rows":  len(recs),
	}).Info("replaced broadcast table")
	return nil
}

// EnsureHeaders writes the column names into tables that are still empty.
func (s *ReportStore) EnsureHeaders(ctx context.Context) error {
	if _, err := s.ensureHeader(ctx, s.growthTable, models.GrowthColumns); err != nil {
		return err
	}
	_, err := s.ensureHeader(ctx, s.broadcastTable, models.BroadcastColumns)
	return err
}

// ensureHeader writes columns into row 1 of an empty table and returns the
// table's last populated row afterwards.
func (s *ReportStore) ensureHeader(ctx context.Context, table string, columns []string) (int, error) {
	last, err := s.grid.LastRow(ctx, table)
	if err != nil {
		return 0, err
	}
	if last > 0 {
		return last, nil
	}

	cells := make([]Cell, len(columns))
	for i, h := range columns {
		cells[i] = TextCell(h)
	}
	if err := s.grid.WriteRow(ctx, table, 1, cells); err != nil {
		return 0, err
	}
	log.WithField("table", table).Info("wrote header row")
	return 1, nil
}

// ReadTable returns every row of table, header included.
func (s *ReportStore) ReadTable(ctx context.Context, table string) ([][]Cell, error) {
	return s.grid.ReadRows(ctx, table, 1, 0)
}

func growthCells(rec models.DailyGrowthRecord) []Cell {
	cells := []Cell{
		DateCell(rec.Date),
		IntCell(rec.TotalSubscribers),
		EmptyCell(),
		EmptyCell(),
		IntCell(rec.NetChange),
		IntCell(rec.CumulativeTotal),
	}
	if rec.NewSubscribers != nil {
		cells[2] = IntCell(*rec.NewSubscribers)
	}
	if rec.NewUnsubscribers != nil {
		cells[3] = IntCell(*rec.NewUnsubscribers)
	}
	return cells
}

func growthFromCells(cells []Cell) (*models.DailyGrowthRecord, error) {
	if len(cells) < len(models.GrowthColumns) {
		return nil, errors.Errorf("expected %d columns, got %d", len(models.GrowthColumns), len(cells))
	}

	var (
		rec models.DailyGrowthRecord
		err error
	)
	if rec.Date, err = cells[0].Date(); err != nil {
		return nil, err
	}
	if rec.TotalSubscribers, err = cells[1].Int(); err != nil {
		return nil, errors.Wrap(err, "total_subscribers")
	}
	if rec.NewSubscribers, err = optionalInt(cells[2]); err != nil {
		return nil, errors.Wrap(err, "new_subscribers")
	}
	if rec.NewUnsubscribers, err = optionalInt(cells[3]); err != nil {
		return nil, errors.Wrap(err, "new_unsubscribers")
	}
	if rec.NetChange, err = cells[4].Int(); err != nil {
		return nil, errors.Wrap(err, "net_change")
	}
	if rec.CumulativeTotal, err = cells[5].Int(); err != nil {
		return nil, errors.Wrap(err, "cumulative_total")
	}
	return &rec, nil
}

func optionalInt(c Cell) (*int64, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	n, err := c.Int()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func broadcastCells(rec models.BroadcastRecord) []Cell {
	return []Cell{
		IntCell(rec.ID),
		TextCell(rec.CreatedAt.UTC().Format(time.RFC3339)),
		TextCell(rec.Subject),
		IntCell(rec.Recipients),
		FloatCell(rec.OpenRate),
		FloatCell(rec.ClickRate),
		IntCell(rec.Unsubscribes),
		IntCell(rec.TotalClicks),
	}
}
