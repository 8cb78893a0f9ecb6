// Package upstream fetches validator metadata and battle reports from the
// remote report API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/pkg/logger"
	"github.com/okian/duelboard/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 2
	defaultBurst   = 4

	// maxBodyBytes bounds a single decoded response.
	maxBodyBytes = 64 << 20

	endpointReports = "get-reports"
	endpointBattles = "get-battles"
)

type reportsResponse struct {
	Reports []struct {
		Hotkey string `json:"hotkey"`
		Report struct {
			Metadata map[model.ParticipantID]model.ParticipantMeta `json:"metadata"`
		} `json:"report"`
	} `json:"reports"`
}

type battlesResponse struct {
	Battles []model.BatchReport `json:"battles"`
}

// Client talks to the remote report API. Every request waits on a shared
// token bucket.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), defaultBurst),
		logger:     logger.Get().Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchReports returns the latest metadata report of every validator.
func (c *Client) FetchReports(ctx context.Context) ([]model.ValidatorReport, error) {
	var resp reportsResponse
	if err := c.get(ctx, endpointReports, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.ValidatorReport, 0, len(resp.Reports))
	for _, r := range resp.Reports {
		if r.Hotkey == "" {
			continue
		}
		out = append(out, model.ValidatorReport{Hotkey: r.Hotkey, Metadata: r.Report.Metadata})
	}
	return out, nil
}

// FetchBattles returns the battle batches a validator reported. Each batch
// is tagged with hotkey.
func (c *Client) FetchBattles(ctx context.Context, hotkey string) ([]model.BatchReport, error) {
	var resp battlesResponse
	if err := c.get(ctx, endpointBattles, url.Values{"hotkey": {hotkey}}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Battles {
		resp.Battles[i].Validator = hotkey
	}
	return resp.Battles, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		metrics.RecordUpstreamFetch(endpoint, outcome, float64(time.Since(start).Microseconds())/1000)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	u := c.baseURL + "/api/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s", ErrUpstreamStatus, endpoint, strconv.Itoa(resp.StatusCode))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, endpoint, err)
	}
	c.logger.Debug(ctx, "fetched", logger.String("endpoint", endpoint), logger.String("url", u))
	return nil
}
