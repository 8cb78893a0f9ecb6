package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/duelboard/internal/domain/model"
	"github.com/okian/duelboard/internal/domain/types"
)

const (
	maxSubmitAttempts = 5
	retryBackoff      = 200 * time.Millisecond
)

// errBackpressure marks a 429 from the server.
var errBackpressure = errors.New("server applied backpressure")

type submitRequest struct {
	Validator string              `json:"validator,omitempty"`
	Reports   []model.BatchReport `json:"reports"`
}

type submitResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Rejected   int    `json:"rejected"`
}

type rankingResponse struct {
	Ranking []types.Standing `json:"ranking"`
}

// client is a thin JSON client for the duelboard HTTP API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) health(ctx context.Context) error {
	return c.getJSON(ctx, "/healthz", nil, nil)
}

// submit posts one chunk, retrying on backpressure. Batches accepted by an
// earlier attempt come back as duplicates and are not counted twice.
func (c *client) submit(ctx context.Context, validator string, chunk []model.BatchReport) (submitResponse, error) {
	body, err := json.Marshal(submitRequest{Validator: validator, Reports: chunk})
	if err != nil {
		return submitResponse{}, fmt.Errorf("marshal chunk: %w", err)
	}

	var total submitResponse
	for attempt := 1; ; attempt++ {
		res, err := c.postReports(ctx, body)
		if err == nil || errors.Is(err, errBackpressure) {
			res.Duplicates -= total.Accepted
			total.Accepted += res.Accepted
			total.Rejected = res.Rejected
			if err == nil {
				total.Duplicates = res.Duplicates
				total.Status = res.Status
				return total, nil
			}
		}
		if !errors.Is(err, errBackpressure) || attempt == maxSubmitAttempts {
			return total, err
		}
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}

func (c *client) postReports(ctx context.Context, body []byte) (submitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/reports", bytes.NewReader(body))
	if err != nil {
		return submitResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return submitResponse{}, fmt.Errorf("post reports: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out submitResponse
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return submitResponse{}, fmt.Errorf("read response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusAccepted:
		if err := json.Unmarshal(raw, &out); err != nil {
			return submitResponse{}, fmt.Errorf("decode response: %w", err)
		}
		return out, nil
	case http.StatusTooManyRequests:
		_ = json.Unmarshal(raw, &out)
		return out, errBackpressure
	default:
		return submitResponse{}, fmt.Errorf("post reports: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}

func (c *client) storedBatches(ctx context.Context) (int, error) {
	var st map[string]any
	if err := c.getJSON(ctx, "/stats", nil, &st); err != nil {
		return 0, err
	}
	n, _ := st["storedBatches"].(float64)
	return int(n), nil
}

func (c *client) ranking(ctx context.Context, validator string, limit int) ([]types.Standing, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if validator != "" {
		q.Set("validator", validator)
	}
	var out rankingResponse
	if err := c.getJSON(ctx, "/ranking", q, &out); err != nil {
		return nil, err
	}
	return out.Ranking, nil
}

func (c *client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
