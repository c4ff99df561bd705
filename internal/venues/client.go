package venues

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
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const userAgent = "arbcommand/0.1"

// Client is the shared REST client for all connectors: per-host token
// bucket, per-host circuit breaker, and error classification so the
// scheduler can pick the right retry policy.
type Client struct {
	http  *http.Client
	rps   float64
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewClient builds a client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http:     &http.Client{Timeout: timeout},
		rps:      10,
		burst:    5,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(c.rps), c.burst)
	c.limiters[host] = l
	return l
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[host]; ok {
		return b
	}
	st := gobreaker.Settings{Name: host}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	b := gobreaker.NewCircuitBreaker(st)
	c.breakers[host] = b
	return b
}

// GetJSON performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, venue, rawURL string, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &VenueError{Venue: venue, Kind: ErrDecode, Err: err}
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &VenueError{Venue: venue, Kind: ErrNetwork, Err: err}
	}
	return c.do(venue, req, out)
}

// PostJSON performs a rate-limited POST with a JSON body and decodes the
// JSON response into out.
func (c *Client) PostJSON(ctx context.Context, venue, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &VenueError{Venue: venue, Kind: ErrDecode, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return &VenueError{Venue: venue, Kind: ErrNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(venue, req, out)
}

func (c *Client) do(venue string, req *http.Request, out any) error {
	host := req.URL.Host
	req.Header.Set("User-Agent", userAgent)

	if err := c.limiter(host).Wait(req.Context()); err != nil {
		return &VenueError{Venue: venue, Kind: ErrNetwork, Err: err}
	}

	_, err := c.breaker(host).Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &VenueError{Venue: venue, Kind: ErrNetwork, Err: err}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418:
			return nil, &VenueError{Venue: venue, Kind: ErrRateLimited,
				Err: fmt.Errorf("status %d", resp.StatusCode)}
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return nil, &VenueError{Venue: venue, Kind: ErrNetwork,
				Err: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &VenueError{Venue: venue, Kind: ErrDecode, Err: err}
		}
		return nil, nil
	})
	if err != nil {
		var ve *VenueError
		if errors.As(err, &ve) {
			return ve
		}
		// Breaker-open errors look like an outage to the caller.
		return &VenueError{Venue: venue, Kind: ErrNetwork, Err: err}
	}
	return nil
}

// parseFloat converts venue string prices; exchanges return numbers as
// strings almost everywhere.
func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMillis converts a millisecond epoch to time.Time, zero on 0.
func parseMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
