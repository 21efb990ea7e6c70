// Snapshot builder: turns stats client output into the two record types.
package snapshot

import (
	"context"
	"strconv"
	"time"

	"ckreport/convertkit_v3"
	"ckreport/models"

	"github.com/customerio/clock"
	log "github.com/sirupsen/logrus"
)

// StatsSource is the subset of the stats client the builder reads from.
type StatsSource interface {
	FetchTotalSubscribers(ctx context.Context) (int64, error)
	FetchSubscriberDelta(ctx context.Context, day time.Time, filter convertkit_v3.DeltaFilter) (int64, error)
	FetchBroadcasts(ctx context.Context) ([]convertkit_v3.BroadcastSummary, error)
	FetchAllBroadcastStats(ctx context.Context, ids []int64) (map[int64]convertkit_v3.BroadcastStats, error)
}

// GrowthHistory exposes the previously appended growth row.
type GrowthHistory interface {
	LastGrowthRecord(ctx context.Context) (*models.DailyGrowthRecord, error)
}

// Snapshot is everything one invocation derives before anything is written.
type Snapshot struct {
	Growth     models.DailyGrowthRecord
	Previous   *models.DailyGrowthRecord
	Broadcasts []models.BroadcastRecord
}

type Builder struct {
	stats       StatsSource
	history     GrowthHistory
	now         func() time.Time
	loc         *time.Location
	trackDeltas bool
}

type Option func(*Builder)

func WithNow(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

// WithDailyDeltas also fetches the day's new subscribers and cancellations.
func WithDailyDeltas(enabled bool) Option {
	return func(b *Builder) { b.trackDeltas = enabled }
}

func NewBuilder(stats StatsSource, history GrowthHistory, opts ...Option) *Builder {
	b := &Builder{
		stats:   stats,
		history: history,
		now:     clock.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ReportDay is yesterday in the builder's location, at midnight UTC so it
// formats and compares as a plain calendar day.
func (b *Builder) ReportDay() time.Time {
	y, m, d := b.now().In(b.loc).AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Build fetches and derives a full snapshot. Any failure aborts the whole build.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	day := b.ReportDay()

	total, err := b.stats.FetchTotalSubscribers(ctx)
	if err != nil {
		return nil, err
	}

	var newSubs, unsubs *int64
	if b.trackDeltas {
		n, err := b.stats.FetchSubscriberDelta(ctx, day, convertkit_v3.NewSubscribers)
		if err != nil {
			return nil, err
		}
		u, err := b.stats.FetchSubscriberDelta(ctx, day, convertkit_v3.Cancellations)
		if err != nil {
			return nil, err
		}
		newSubs, unsubs = &n, &u
	}

	previous, err := b.history.LastGrowthRecord(ctx)
	if err != nil {
		return nil, err
	}
	growth := DeriveGrowth(day, total, newSubs, unsubs, previous)

	broadcasts, err := b.buildBroadcasts(ctx)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"date":       growth.Day(),
		"total":      growth.TotalSubscribers,
		"net_change": growth.NetChange,
		"broadcasts": len(broadcasts),
	}).Info("built snapshot")

	return &Snapshot{Growth: growth, Previous: previous, Broadcasts: broadcasts}, nil
}

func (b *Builder) buildBroadcasts(ctx context.Context) ([]models.BroadcastRecord, error) {
	summaries, err := b.stats.FetchBroadcasts(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ID
	}
	stats, err := b.stats.FetchAllBroadcastStats(ctx, ids)
	if err != nil {
		return nil, err
	}

	return JoinBroadcasts(summaries, stats)
}

// JoinBroadcasts keeps the provider's order; the stats map carries no ordering.
// A broadcast without stats fails the join.
func JoinBroadcasts(summaries []convertkit_v3.BroadcastSummary, stats map[int64]convertkit_v3.BroadcastStats) ([]models.BroadcastRecord, error) {
	out := make([]models.BroadcastRecord, 0, len(summaries))
	for _, s := range summaries {
		st, ok := stats[s.ID]
		if !ok {
			return nil, &convertkit_v3.UpstreamError{
				Endpoint: "broadcasts/" + strconv.FormatInt(s.ID, 10) + "/stats",
				Message:  "no stats returned for broadcast",
			}
		}
		out = append(out, models.BroadcastRecord{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			Subject:      s.Subject,
			Recipients:   st.Recipients,
			OpenRate:     st.OpenRate,
			ClickRate:    st.ClickRate,
			Unsubscribes: st.Unsubscribes,
			TotalClicks:  st.TotalClicks,
		})
	}
	return out, nil
}
