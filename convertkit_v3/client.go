// Stats client for the ConvertKit v3 REST API.
package convertkit_v3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"ckreport/config"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	secretParam  = "api_secret"
	userAgent    = "ckreport/1.0"
	maxBodyBytes = 8 << 20
	dayLayout    = "2006-01-02"
)

// DeltaFilter selects which subscribers GET subscribers counts for a single day.
type DeltaFilter int

const (
	NewSubscribers DeltaFilter = iota
	Cancellations
)

func (f DeltaFilter) String() string {
	if f == Cancellations {
		return "cancellations"
	}
	return "new_subscribers"
}

type Client struct {
	baseURL     *url.URL
	secret      string
	transport   string
	header      string
	concurrency int
	httpClient  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, including its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg config.CKConfig, creds config.Credentials, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if creds.APISecret == "" {
		return nil, &config.CredentialMissingError{Name: config.APISecretName}
	}

	base, err := url.Parse(cfg.Base_URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}

	c := &Client{
		baseURL:     base,
		secret:      creds.APISecret,
		transport:   cfg.Secret_Transport,
		header:      cfg.Secret_Header,
		concurrency: cfg.Stats_Concurrency,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchTotalSubscribers returns total_subscribers as reported right now.
func (c *Client) FetchTotalSubscribers(ctx context.Context) (int64, error) {
	var resp subscribersResponse
	if err := c.get(ctx, "subscribers", nil, &resp); err != nil {
		return 0, err
	}
	if resp.TotalSubscribers == nil {
		return 0, &UpstreamError{Endpoint: "subscribers", Message: "response has no total_subscribers"}
	}
	return *resp.TotalSubscribers, nil
}

// FetchSubscriberDelta counts subscribers matching filter on a single day.
func (c *Client) FetchSubscriberDelta(ctx context.Context, day time.Time, filter DeltaFilter) (int64, error) {
	q := url.Values{}
	q.Set("from", day.Format(dayLayout))
	q.Set("to", day.Format(dayLayout))
	if filter == Cancellations {
		q.Set("sort_field", "cancelled_at")
	}

	var resp subscribersResponse
	if err := c.get(ctx, "subscribers", q, &resp); err != nil {
		return 0, err
	}
	if resp.TotalSubscribers == nil {
		return 0, &UpstreamError{Endpoint: "subscribers", Message: "response has no total_subscribers"}
	}
	return *resp.TotalSubscribers, nil
}

// FetchBroadcasts returns the broadcast summaries in provider order.
func (c *Client) FetchBroadcasts(ctx context.Context) ([]BroadcastSummary, error) {
	var resp broadcastsResponse
	if err := c.get(ctx, "broadcasts", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Broadcasts == nil {
		return nil, &UpstreamError{Endpoint: "broadcasts", Message: "response has no broadcasts"}
	}
	return *resp.Broadcasts, nil
}

func (c *Client) FetchBroadcastStats(ctx context.Context, id int64) (BroadcastStats, error) {
	endpoint := "broadcasts/" + strconv.FormatInt(id, 10) + "/stats"

	var resp broadcastStatsResponse
	if err := c.get(ctx, endpoint, nil, &resp); err != nil {
		return BroadcastStats{}, err
	}
	if resp.Broadcast == nil || resp.Broadcast.Stats == nil {
		return BroadcastStats{}, &UpstreamError{Endpoint: endpoint, Message: "response has no broadcast.stats"}
	}
	return *resp.Broadcast.Stats, nil
}

// FetchAllBroadcastStats fetches stats for every id with at most Stats_Concurrency
// requests in flight. The first failure cancels the remaining requests.
func (c *Client) FetchAllBroadcastStats(ctx context.Context, ids []int64) (map[int64]BroadcastStats, error) {
	out := make(map[int64]BroadcastStats, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			stats, err := c.FetchBroadcastStats(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = stats
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: endpoint})
	if query == nil {
		query = url.Values{}
	}
	if c.transport == config.SecretInQuery {
		query.Set(secretParam, c.secret)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.transport == config.SecretInHeader {
		req.Header.Set(c.header, c.secret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, Err: redactError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: redactError(err)}
	}

	log.WithFields(log.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("convertkit request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    "malformed JSON",
			Err:        err,
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.Error != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Error, e.Message)
	case e.Error != "":
		return e.Error
	default:
		return e.Message
	}
}

// redactError strips the query string from url errors so the secret never reaches logs.
func redactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
		return &url.Error{Op: ue.Op, URL: "", Err: ue.Err}
	}
	return err
}
