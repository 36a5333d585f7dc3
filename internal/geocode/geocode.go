// Package geocode resolves manually entered addresses to coordinates using a
// Nominatim-compatible HTTP API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nitesh/civictrack/internal/geo"
)

// ErrNoResults is returned when the geocoder has no match for a query.
var ErrNoResults = eris.New("geocode: no results")

// Match is a geocoded place.
type Match struct {
	Point       geo.GeoPoint
	DisplayName string
}

// Client is a minimal Nominatim-compatible geocoding client.
type Client struct {
	baseURL   string
	userAgent string
	hc        *http.Client
	limiter   *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithRateLimit caps outbound requests per second. Public Nominatim allows 1.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient creates a new client. If httpClient is nil, a default with timeout is used.
func NewClient(baseURL, userAgent string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		hc:        httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// place is one element of a /search response or the /reverse response.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Geocode returns the best match for a free-form address.
func (c *Client) Geocode(ctx context.Context, address string) (Match, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Match{}, eris.New("geocode: empty address")
	}
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var places []place
	if err := c.get(ctx, "/search", q, &places); err != nil {
		return Match{}, err
	}
	if len(places) == 0 {
		return Match{}, eris.Wrapf(ErrNoResults, "address %q", address)
	}
	return places[0].match()
}

// Reverse returns a display name for a coordinate pair.
func (c *Client) Reverse(ctx context.Context, p geo.GeoPoint) (Match, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Longitude, 'f', -1, 64))
	q.Set("format", "jsonv2")

	var pl place
	if err := c.get(ctx, "/reverse", q, &pl); err != nil {
		return Match{}, err
	}
	if pl.Error != "" {
		return Match{}, eris.Wrap(ErrNoResults, pl.Error)
	}
	return pl.match()
}

func (p place) match() (Match, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Match{}, eris.Wrapf(err, "geocode: parse lat %q", p.Lat)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Match{}, eris.Wrapf(err, "geocode: parse lon %q", p.Lon)
	}
	return Match{Point: geo.GeoPoint{Latitude: lat, Longitude: lon}, DisplayName: p.DisplayName}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: rate limit wait")
		}
	}
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "geocode: new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	zap.L().Debug("geocode request",
		zap.String("path", path),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return eris.Wrap(err, "geocode: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "geocode: read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("geocode: request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "geocode: decode response")
	}
	return nil
}
