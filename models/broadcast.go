package models

import "time"

// BroadcastRecord joins a broadcast summary with its engagement stats.
type BroadcastRecord struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Subject      string    `json:"subject"`
	Recipients   int64     `json:"recipients"`
	OpenRate     float64   `json:"open_rate"`
	ClickRate    float64   `json:"click_rate"`
	Unsubscribes int64     `json:"unsubscribes"`
	TotalClicks  int64     `json:"total_clicks"`
}

var BroadcastColumns = []string{
	"id",
	"created_date",
	"subject",
	"recipients",
	"open_rate",
	"click_rate",
	"unsubscribes",
	"total_clicks",
}
