package dailysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ckreport/config"
	"ckreport/convertkit_v3"
	"ckreport/database"
	"ckreport/models"
	"ckreport/report"
	"ckreport/snapshot"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcast struct {
	ID         int64
	Subject    string
	Recipients int64
}

// fakeConvertKit serves the three v3 endpoints the sync reads.
type fakeConvertKit struct {
	mu         sync.Mutex
	total      int64
	broadcasts []broadcast
	missing    map[int64]bool
}

func (f *fakeConvertKit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v3/")
	switch {
	case path == "subscribers":
		fmt.Fprintf(w, `{"total_subscribers": %d, "page": 1, "total_pages": 1}`, f.total)

	case path == "broadcasts":
		type summary struct {
			ID        int64     `json:"id"`
			CreatedAt time.Time `json:"created_at"`
			Subject   string    `json:"subject"`
		}
		var list []summary
		for i, b := range f.broadcasts {
			list = append(list, summary{ID: b.ID, Subject: b.Subject, CreatedAt: time.Date(2026, 10, 1+i, 9, 0, 0, 0, time.UTC)})
		}
		if list == nil {
			list = []summary{}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"broadcasts": list})

	case strings.HasPrefix(path, "broadcasts/") && strings.HasSuffix(path, "/stats"):
		id, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(path, "broadcasts/"), "/stats"), 10, 64)
		for _, b := range f.broadcasts {
			if b.ID == id && !f.missing[id] {
				fmt.Fprintf(w, `{"broadcast": {"id": %d, "stats": {"recipients": %d, "open_rate": 41.5, "click_rate": 3.25, "unsubscribes": 1, "total_clicks": 8}}}`, id, b.Recipients)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": "Not Found", "message": "Not Found"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type fixture struct {
	ck     *fakeConvertKit
	store  *database.ReportStore
	runner *Runner
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ck := &fakeConvertKit{missing: map[int64]bool{}}
	srv := httptest.NewServer(ck)
	t.Cleanup(srv.Close)

	client, err := convertkit_v3.NewClient(
		config.CKConfig{Base_URL: srv.URL + "/v3/"},
		config.Credentials{APIKey: "key", APISecret: "secret"},
	)
	require.NoError(t, err)

	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	grid := database.NewSQLGrid(db)
	require.NoError(t, grid.EnsureSchema(context.Background()))
	store := database.NewReportStore(grid, config.DefaultGrowthTable, config.DefaultBroadcastTable)
	require.NoError(t, store.EnsureHeaders(context.Background()))

	now := func() time.Time { return time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC) }
	builder := snapshot.NewBuilder(client, store, snapshot.WithNow(now))

	opts = append([]Option{WithNow(now)}, opts...)
	return &fixture{ck: ck, store: store, runner: NewRunner(builder, store, opts...)}
}

func (f *fixture) table(t *testing.T, name string) [][]database.Cell {
	t.Helper()
	rows, err := f.store.ReadTable(context.Background(), name)
	require.NoError(t, err)
	return rows
}

func TestRun_AppendsAgainstPreviousTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.AppendGrowthRow(ctx, models.DailyGrowthRecord{
		Date:             time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC),
		TotalSubscribers: 950,
		CumulativeTotal:  950,
	})
	require.NoError(t, err)

	f.ck.total = 1000
	f.ck.broadcasts = []broadcast{{ID: 1, Subject: "One", Recipients: 900}, {ID: 2, Subject: "Two", Recipients: 950}}

	res, err := f.runner.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.GrowthRow)
	assert.Equal(t, 2, res.Broadcasts)

	growth := f.table(t, config.DefaultGrowthTable)
	require.Len(t, growth, 3)
	row := growth[2]
	assert.Equal(t, "2026-10-17", row[0].Raw)
	assert.Equal(t, "1000", row[1].Raw)
	assert.True(t, row[2].IsEmpty())
	assert.Equal(t, "50", row[4].Raw)

	broadcasts := f.table(t, config.DefaultBroadcastTable)
	require.Len(t, broadcasts, 3)
	assert.Equal(t, "1", broadcasts[1][0].Raw)
	assert.Equal(t, "900", broadcasts[1][3].Raw)
	assert.Equal(t, "41.5", broadcasts[1][4].Raw)
	assert.Len(t, broadcasts[2], len(models.BroadcastColumns))

	m := f.runner.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues(resultSuccess)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.Subscribers))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Broadcasts))
	assert.Equal(t, float64(time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC).Unix()), testutil.ToFloat64(m.LastSuccess))
}

func TestRun_ShrinkingBroadcastsLeaveNoStaleRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ck.total = 10
	f.ck.broadcasts = []broadcast{{ID: 1}, {ID: 2}, {ID: 3}}
	_, err := f.runner.Run(ctx)
	require.NoError(t, err)
	require.Len(t, f.table(t, config.DefaultBroadcastTable), 4)

	f.ck.broadcasts = []broadcast{{ID: 1}, {ID: 2}}
	_, err = f.runner.Run(ctx)
	require.NoError(t, err)

	rows := f.table(t, config.DefaultBroadcastTable)
	require.Len(t, rows, 3, "row 4 must be cleared")
	assert.Equal(t, "1", rows[1][0].Raw)
	assert.Equal(t, "2", rows[2][0].Raw)

	// growth is append-only across runs
	assert.Len(t, f.table(t, config.DefaultGrowthTable), 3)
}

func TestRun_UnknownBroadcastAbortsWithoutWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ck.total = 10
	f.ck.broadcasts = []broadcast{{ID: 1}, {ID: 2}}
	_, err := f.runner.Run(ctx)
	require.NoError(t, err)

	growthBefore := f.table(t, config.DefaultGrowthTable)
	broadcastsBefore := f.table(t, config.DefaultBroadcastTable)

	f.ck.total = 20
	f.ck.broadcasts = append(f.ck.broadcasts, broadcast{ID: 99})
	f.ck.missing[99] = true

	res, err := f.runner.Run(ctx)
	assert.Nil(t, res)
	var ue *convertkit_v3.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)

	assert.Equal(t, growthBefore, f.table(t, config.DefaultGrowthTable))
	assert.Equal(t, broadcastsBefore, f.table(t, config.DefaultBroadcastTable))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.Metrics().Runs.WithLabelValues(resultFailed)))
}

type heldLocker struct{}

func (heldLocker) TryLock(ctx context.Context) (func(), error) { return nil, ErrRunInProgress }

func TestRun_HeldLockSkips(t *testing.T) {
	f := newFixture(t, WithLocker(heldLocker{}))
	f.ck.total = 10

	res, err := f.runner.Run(context.Background())
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrRunInProgress))
	assert.Len(t, f.table(t, config.DefaultGrowthTable), 1, "store untouched")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.Metrics().Runs.WithLabelValues(resultSkipped)))
}

// recordingExporter checks that both tables are complete by the time it runs.
type recordingExporter struct {
	store     *database.ReportStore
	day       time.Time
	growth    int
	broadcast int
	err       error
}

func (e *recordingExporter) Export(ctx context.Context, day time.Time) (*report.Result, error) {
	e.day = day
	g, _ := e.store.ReadTable(ctx, e.store.GrowthTable())
	b, _ := e.store.ReadTable(ctx, e.store.BroadcastTable())
	e.growth, e.broadcast = len(g), len(b)
	if e.err != nil {
		return nil, e.err
	}
	return &report.Result{FileName: report.FileName(day)}, nil
}

func TestRun_ExportsAfterBothWrites(t *testing.T) {
	exp := &recordingExporter{}
	f := newFixture(t, WithExporter(exp))
	exp.store = f.store

	f.ck.total = 10
	f.ck.broadcasts = []broadcast{{ID: 1}, {ID: 2}}

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.Equal(t, "report_2026-10-17.csv", res.Report.FileName)
	assert.Equal(t, 2, exp.growth)
	assert.Equal(t, 3, exp.broadcast)
	assert.Equal(t, "2026-10-17", exp.day.Format(models.DateLayout))
}

func TestRun_ExportFailureKeepsTables(t *testing.T) {
	exp := &recordingExporter{err: errors.New("gmail quota")}
	f := newFixture(t, WithExporter(exp))
	exp.store = f.store
	f.ck.total = 10

	res, err := f.runner.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, res, "tables were written")
	assert.Equal(t, 2, res.GrowthRow)
	assert.Len(t, f.table(t, config.DefaultGrowthTable), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.Metrics().Runs.WithLabelValues(resultExportFailed)))
}
