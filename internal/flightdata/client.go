package flightdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yegors/flightwx/pkg/logger"
)

const maxBodyBytes = 8 << 20

// ErrUnavailable wraps every transport or server-side failure of the backend
var ErrUnavailable = errors.New("flight data backend unavailable")

// Config holds the flight-data backend settings
type Config struct {
	APIBaseURL  string // e.g. https://api.flightradar24.com/common/v1
	SiteBaseURL string // e.g. https://www.flightradar24.com
	Token       string // optional API token
	UserAgent   string
	Timeout     time.Duration
}

// Client is a long-lived, stateless handle on the flight-data backend.
// A single instance is created at startup and shared by all requests.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new flight-data client
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("flightdata-client"),
	}
}

// HistoryByFlightNumber returns the recent flights operated under a flight number
func (c *Client) HistoryByFlightNumber(ctx context.Context, flightNumber string) ([]json.RawMessage, error) {
	var resp flightListResponse
	found, err := c.getResponse(ctx, c.flightListURL(flightNumber, "flight", 1, 100), &resp)
	if err != nil || !found {
		return nil, err
	}
	return resp.Data, nil
}

// ImagesByTailNumber returns the photos of an aircraft, paginated per size bucket
func (c *Client) ImagesByTailNumber(ctx context.Context, registration string, page, limit int) (AircraftImages, error) {
	var resp flightListResponse
	found, err := c.getResponse(ctx, c.flightListURL(registration, "reg", 1, 1), &resp)
	if err != nil || !found {
		return nil, err
	}
	if len(resp.AircraftImages) == 0 || resp.AircraftImages[0].Images == nil {
		return AircraftImages{}, nil
	}
	return resp.AircraftImages[0].Images.Page(page, limit), nil
}

// AirportMETARs returns the current METAR observations reported for an airport, newest first
func (c *Client) AirportMETARs(ctx context.Context, airport string, page, limit int) ([]Observation, error) {
	var resp airportResponse
	found, err := c.getResponse(ctx, c.airportURL(airport, page, limit), &resp)
	if err != nil || !found {
		return nil, err
	}

	w := resp.Airport.PluginData.Weather
	if w == nil || len(w.METAR) == 0 || string(w.METAR) == "null" {
		return nil, nil
	}

	observations, err := parseMETARField(w)
	if err != nil {
		c.logger.Warn("Malformed METAR field in airport weather",
			logger.String("airport", airport),
			logger.Error(err))
		return nil, nil
	}
	if limit > 0 && len(observations) > limit {
		observations = observations[:limit]
	}
	return observations, nil
}

// parseMETARField handles the plugin's "metar" value being a single string or a list
func parseMETARField(w *weatherPlugin) ([]Observation, error) {
	var single string
	if err := json.Unmarshal(w.METAR, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		var t json.RawMessage
		if len(w.Time) > 0 && string(w.Time) != "null" {
			t = w.Time
		}
		return []Observation{NewRecord(single, t)}, nil
	}

	var list []Observation
	if err := json.Unmarshal(w.METAR, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) flightListURL(query, fetchBy string, page, limit int) string {
	q := url.Values{}
	q.Set("query", query)
	q.Set("fetchBy", fetchBy)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if c.config.Token != "" {
		q.Set("token", c.config.Token)
	}
	return fmt.Sprintf("%s/flight/list.json?%s", c.config.APIBaseURL, q.Encode())
}

func (c *Client) airportURL(code string, page, limit int) string {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	q := url.Values{}
	q.Set("code", code)
	q.Set("plugin[]", "weather")
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if c.config.Token != "" {
		q.Set("token", c.config.Token)
	}
	return fmt.Sprintf("%s/airport.json?%s", c.config.APIBaseURL, q.Encode())
}

// getResponse fetches a JSON envelope and decodes result.response into target.
// Upstream 404 and malformed payloads report found=false without error.
func (c *Client) getResponse(ctx context.Context, endpoint string, target interface{}) (bool, error) {
	body, found, err := c.fetch(ctx, endpoint, "application/json")
	if err != nil || !found {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Warn("Malformed flight data response", logger.String("url", redact(endpoint)), logger.Error(err))
		return false, nil
	}
	if len(env.Result.Response) == 0 || string(env.Result.Response) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Result.Response, target); err != nil {
		c.logger.Warn("Unexpected flight data response shape", logger.String("url", redact(endpoint)), logger.Error(err))
		return false, nil
	}
	return true, nil
}

// fetch performs a single GET and returns the body of a 200 response
func (c *Client) fetch(ctx context.Context, endpoint, accept string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("error building flight data request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Flight data request completed",
		logger.String("url", redact(endpoint)),
		logger.Int("status_code", resp.StatusCode),
		logger.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unexpected status code: %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fmt.Errorf("%w: error reading response: %v", ErrUnavailable, err)
	}
	return body, true, nil
}

// redact strips the token from URLs before they are logged
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
