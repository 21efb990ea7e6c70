// Daily sync: the single entry point that builds a snapshot and writes both tables.
package dailysync

import (
	"context"
	"time"

	"ckreport/models"
	"ckreport/report"
	"ckreport/snapshot"

	"github.com/customerio/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type SnapshotBuilder interface {
	Build(ctx context.Context) (*snapshot.Snapshot, error)
}

// Store is the write side of the report store plus the latest growth row.
type Store interface {
	LastGrowthRecord(ctx context.Context) (*models.DailyGrowthRecord, error)
	AppendGrowthRow(ctx context.Context, rec models.DailyGrowthRecord) (int, error)
	ReplaceBroadcastTable(ctx context.Context, recs []models.BroadcastRecord) error
}

type Exporter interface {
	Export(ctx context.Context, day time.Time) (*report.Result, error)
}

type RunResult struct {
	RunID      string                   `json:"run_id"`
	Growth     models.DailyGrowthRecord `json:"growth"`
	GrowthRow  int                      `json:"growth_row"`
	Broadcasts int                      `json:"broadcasts"`
	Report     *report.Result           `json:"report,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
}

type Runner struct {
	builder  SnapshotBuilder
	store    Store
	exporter Exporter
	locker   Locker
	metrics  *Metrics
	now      func() time.Time
}

type Option func(*Runner)

// WithExporter enables the report export after both tables are written.
func WithExporter(e Exporter) Option {
	return func(r *Runner) { r.exporter = e }
}

func WithLocker(l Locker) Option {
	return func(r *Runner) { r.locker = l }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func NewRunner(builder SnapshotBuilder, store Store, opts ...Option) *Runner {
	r := &Runner{
		builder: builder,
		store:   store,
		locker:  &LocalLocker{},
		metrics: NewMetrics(),
		now:     clock.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Metrics() *Metrics { return r.metrics }

func (r *Runner) Store() Store { return r.store }

// Run performs one daily sync. A build failure writes nothing. A failure after the
// growth row is appended leaves that row in place; the next run picks up from it.
// An export failure returns the result together with the error.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), StartedAt: r.now()}
	logger := log.WithField("run_id", res.RunID)

	unlock, err := r.locker.TryLock(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			logger.Warn("skipping run, another sync holds the lock")
			r.metrics.Runs.WithLabelValues(resultSkipped).Inc()
		} else {
			r.finish(logger, res, resultFailed, err)
		}
		return nil, err
	}
	defer unlock()

	logger.Info("daily sync started")

	snap, err := r.builder.Build(ctx)
	if err != nil {
		r.finish(logger, res, resultFailed, err)
		return nil, errors.Wrap(err, "build snapshot")
	}
	res.Growth = snap.Growth

	res.GrowthRow, err = r.store.AppendGrowthRow(ctx, snap.Growth)
	if err != nil {
		r.finish(logger, res, resultFailed, err)
		return nil, errors.Wrap(err, "append growth row")
	}

	if err := r.store.ReplaceBroadcastTable(ctx, snap.Broadcasts); err != nil {
		logger.WithField("growth_row", res.GrowthRow).Error("growth row written but broadcast table was not")
		r.finish(logger, res, resultFailed, err)
		return nil, errors.Wrap(err, "replace broadcast table")
	}
	res.Broadcasts = len(snap.Broadcasts)

	r.metrics.LastSuccess.Set(float64(r.now().Unix()))
	r.metrics.Subscribers.Set(float64(snap.Growth.TotalSubscribers))
	r.metrics.Broadcasts.Set(float64(res.Broadcasts))

	if r.exporter != nil {
		res.Report, err = r.exporter.Export(ctx, snap.Growth.Date)
		if err != nil {
			r.finish(logger, res, resultExportFailed, err)
			return res, errors.Wrap(err, "export report")
		}
	}

	r.finish(logger, res, resultSuccess, nil)
	return res, nil
}

func (r *Runner) finish(logger *log.Entry, res *RunResult, result string, err error) {
	finished := r.now()
	res.Duration = finished.Sub(res.StartedAt)
	r.metrics.observe(result, res.StartedAt, finished)

	entry := logger.WithFields(log.Fields{
		"result":     result,
		"duration":   res.Duration.String(),
		"date":       res.Growth.Day(),
		"growth_row": res.GrowthRow,
		"broadcasts": res.Broadcasts,
	})
	if err != nil {
		entry.WithError(err).Error("daily sync failed")
		return
	}
	entry.Info("daily sync finished")
}
