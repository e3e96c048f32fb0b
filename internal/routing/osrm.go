// Package routing fetches road distance tables from an OSRM-compatible
// service.
package routing

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

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"routeopt/internal/opt"
)

const defaultProfile = "driving"

// Client implements opt.Provider against the OSRM /table/v1 endpoint.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpClient = h } }

// WithRateLimit caps outgoing table requests. rps <= 0 leaves them unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithProfile(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.profile = p
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    defaultProfile,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range opts {
		fn(c)
	}
	return c
}

type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// Table returns meters and seconds between every pair of points. Unroutable
// pairs come back as -1.
func (c *Client) Table(ctx context.Context, points []opt.Point, hints opt.Hints) ([][]float64, [][]float64, error) {
	if len(points) == 0 {
		return nil, nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("routing rate limit: %w", err)
		}
	}
	reqURL := c.tableURL(points, hints)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	log.Debug().
		Int("points", len(points)).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("routing table fetched")

	var tr tableResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, nil, fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tr.Code != "Ok" {
		return nil, nil, fmt.Errorf("routing API error: %s %s (status=%d)", tr.Code, tr.Message, resp.StatusCode)
	}
	if len(tr.Distances) != len(points) || len(tr.Durations) != len(points) {
		return nil, nil, fmt.Errorf("routing API returned %d rows for %d points", len(tr.Distances), len(points))
	}
	return flatten(tr.Distances), flatten(tr.Durations), nil
}

func (c *Client) tableURL(points []opt.Point, hints opt.Hints) string {
	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	q := url.Values{}
	q.Set("annotations", "distance,duration")
	var exclude []string
	if hints.AvoidTolls {
		exclude = append(exclude, "toll")
	}
	if hints.AvoidHighways {
		exclude = append(exclude, "motorway")
	}
	if len(exclude) > 0 {
		q.Set("exclude", strings.Join(exclude, ","))
	}
	return fmt.Sprintf("%s/table/v1/%s/%s?%s", c.baseURL, c.profile, strings.Join(coords, ";"), q.Encode())
}

func flatten(rows [][]*float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = -1
				continue
			}
			out[i][j] = *v
		}
	}
	return out
}

var _ opt.Provider = (*Client)(nil)
