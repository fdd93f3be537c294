package avwx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yegors/flightwx/pkg/logger"
)

const maxBodyBytes = 4 << 20

// Config holds the AVWX REST API settings
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	HistoryHours int
}

// Client talks to the AVWX REST API.
// It is safe for concurrent use and holds no per-request state.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new AVWX client
func NewClient(config Config, logger *logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.HistoryHours <= 0 {
		config.HistoryHours = 72
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("avwx-client"),
	}
}

// METAR fetches the latest METAR for the station
func (c *Client) METAR(ctx context.Context, station string) Result {
	endpoint := fmt.Sprintf("%s/metar/%s?format=json", c.config.BaseURL, url.PathEscape(station))
	return c.get(ctx, endpoint, station)
}

// METARHistory fetches the METARs of the last HistoryHours hours for the station
func (c *Client) METARHistory(ctx context.Context, station string) Result {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("hours", strconv.Itoa(c.config.HistoryHours))
	endpoint := fmt.Sprintf("%s/metar/%s/history?%s", c.config.BaseURL, url.PathEscape(station), q.Encode())
	return c.get(ctx, endpoint, station)
}

// get performs a single bounded request; it never retries
func (c *Client) get(ctx context.Context, endpoint, station string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return failed(FailureTransport, 0, fmt.Errorf("error building AVWX request: %w", err))
	}
	req.Header.Set("Authorization", c.config.Token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, 0, fmt.Errorf("AVWX request timed out after %s: %w", c.config.Timeout, err))
		}
		return failed(FailureTransport, 0, fmt.Errorf("error making request to AVWX: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return failed(FailureStatus, resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return failed(FailureTimeout, resp.StatusCode, fmt.Errorf("AVWX response timed out: %w", err))
		}
		return failed(FailureTransport, resp.StatusCode, fmt.Errorf("error reading AVWX response: %w", err))
	}
	if !json.Valid(body) {
		return failed(FailurePayload, resp.StatusCode, errors.New("AVWX response is not valid JSON"))
	}

	c.logger.Debug("AVWX request succeeded",
		logger.String("station", station),
		logger.Duration("duration", time.Since(start)),
		logger.Int("bytes", len(body)))

	return Result{Body: json.RawMessage(body)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
