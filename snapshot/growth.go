package snapshot

import (
	"time"

	"ckreport/models"
)

// DeriveGrowth computes the derived columns of a growth row from the fetched
// counts and the previously stored row (nil when there is none).
//
// net_change is new - unsubs when both deltas are present, otherwise the
// difference to the previous row's total (0 without a previous row).
// cumulative_total accumulates the deltas onto the previous row's cumulative
// value and falls back to the raw total.
func DeriveGrowth(day time.Time, total int64, newSubs, unsubs *int64, previous *models.DailyGrowthRecord) models.DailyGrowthRecord {
	rec := models.DailyGrowthRecord{
		Date:             day,
		TotalSubscribers: total,
		NewSubscribers:   newSubs,
		NewUnsubscribers: unsubs,
		CumulativeTotal:  total,
	}

	if rec.HasDeltas() {
		rec.NetChange = *newSubs - *unsubs
		if previous != nil {
			rec.CumulativeTotal = previous.CumulativeTotal + rec.NetChange
		}
		return rec
	}

	if previous != nil {
		rec.NetChange = total - previous.TotalSubscribers
	}
	return rec
}
