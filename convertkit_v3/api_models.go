package convertkit_v3

import "time"

// BroadcastSummary is one entry of GET broadcasts.
type BroadcastSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Subject   string    `json:"subject"`
}

// BroadcastStats is the stats object of GET broadcasts/{id}/stats.
type BroadcastStats struct {
	Recipients   int64   `json:"recipients"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	Unsubscribes int64   `json:"unsubscribes"`
	TotalClicks  int64   `json:"total_clicks"`
}

type subscribersResponse struct {
	TotalSubscribers *int64 `json:"total_subscribers"`
	Page             int    `json:"page"`
	TotalPages       int    `json:"total_pages"`
}

type broadcastsResponse struct {
	Broadcasts *[]BroadcastSummary `json:"broadcasts"`
}

type broadcastStatsResponse struct {
	Broadcast *struct {
		ID    int64           `json:"id"`
		Stats *BroadcastStats `json:"stats"`
	} `json:"broadcast"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
