package models

import "time"

const DateLayout = "2006-01-02"

// DailyGrowthRecord is one row of the append-only growth log.
type DailyGrowthRecord struct {
	Date             time.Time `json:"date"`
	TotalSubscribers int64     `json:"total_subscribers"`
	NewSubscribers   *int64    `json:"new_subscribers,omitempty"`
	NewUnsubscribers *int64    `json:"new_unsubscribers,omitempty"`
	NetChange        int64     `json:"net_change"`
	CumulativeTotal  int64     `json:"cumulative_total"`
}

// Day formats the record date as YYYY-MM-DD.
func (r DailyGrowthRecord) Day() string {
	return r.Date.Format(DateLayout)
}

// HasDeltas reports whether both daily delta counts were fetched.
func (r DailyGrowthRecord) HasDeltas() bool {
	return r.NewSubscribers != nil && r.NewUnsubscribers != nil
}

// GrowthColumns is the fixed listData layout, one entry per column A..F.
var GrowthColumns = []string{
	"date",
	"total_subscribers",
	"new_subscribers",
	"new_unsubscribers",
	"net_change",
	"cumulative_total",
}
