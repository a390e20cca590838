// Package youtube fetches the mostPopular chart from the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/metrics"
	"github.com/ad-tracker/youtube-trending-ingestion-go/internal/models"
	"github.com/ad-tracker/youtube-trending-ingestion-go/pkg/logger"
)

const (
	// MaxResultsLimit is the largest page the videos endpoint returns.
	MaxResultsLimit = 50

	defaultBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultTimeout     = 20 * time.Second
	defaultTripAfter   = 5
	defaultOpenTimeout = 2 * time.Minute
	maxBodyBytes       = 16 << 20
	maxErrorBodyBytes  = 1024
	breakerName        = "youtube-api"
	requestedParts     = "snippet,statistics,contentDetails"
	chartMostPopular   = "mostPopular"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher is the contract the ingestion jobs depend on.
type Fetcher interface {
	FetchTrending(ctx context.Context, region string, maxResults int) (*models.RawCapture, error)
	// Configured reports missing credentials without touching the network.
	Configured() error
}

// Config holds the client settings.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	APIKey           string
	BaseURL          string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock replaces time.Now as the source of capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client calls the videos endpoint behind a circuit breaker.
type Client struct {
	httpClient HTTPClient
	cb         *gobreaker.CircuitBreaker[[]byte]
	now        func() time.Time
	apiKey     string
	baseURL    string
	timeout    time.Duration
}

// NewClient creates a Client. An empty API key is accepted here and reported on the first fetch.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		now:        time.Now,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}

	for _, opt := range opts {
		opt(c)
	}

	tripAfter := cfg.BreakerFailures
	if tripAfter == 0 {
		tripAfter = defaultTripAfter
	}
	openDelay := cfg.BreakerOpenDelay
	if openDelay <= 0 {
		openDelay = defaultOpenTimeout
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return c
}

// Configured returns a ConfigurationError when no API key is set.
func (c *Client) Configured() error {
	if c.apiKey == "" {
		return &models.ConfigurationError{Setting: "youtube.apikey", Message: "YouTube API key is not set"}
	}
	return nil
}

// FetchTrending requests up to maxResults (clamped to 1..50) trending videos for region
// and stamps the response with a single UTC capture time.
func (c *Client) FetchTrending(ctx context.Context, region string, maxResults int) (*models.RawCapture, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}
	if region == "" {
		return nil, &models.UpstreamError{Region: region, Cause: errors.New("region code is required")}
	}

	limit := ClampMaxResults(maxResults)
	start := time.Now()

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, region, limit)
	})
	metrics.UpstreamRequestDuration.WithLabelValues(region).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequestsTotal.WithLabelValues(region, "rejected").Inc()
			return nil, &models.UpstreamError{Region: region, Cause: err}
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(region, "error").Inc()
		return nil, err
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(region, "ok").Inc()

	capture := &models.RawCapture{
		Payload:    body,
		CapturedAt: c.now().UTC().Format(models.CapturedAtLayout),
		Region:     region,
	}

	logger.L().Debug("Fetched trending videos",
		zap.String("region", region),
		zap.Int("maxResults", limit),
		zap.String("capturedAt", capture.CapturedAt),
		zap.Int("bytes", len(body)),
	)

	return capture, nil
}

func (c *Client) doRequest(ctx context.Context, region string, limit int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("part", requestedParts)
	q.Set("chart", chartMostPopular)
	q.Set("regionCode", region)
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return nil, &models.UpstreamError{Region: region, Cause: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.UpstreamError{Region: region, Cause: redactKey(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.UpstreamError{Region: region, StatusCode: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.UpstreamError{
			Region:     region,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBodyBytes),
		}
	}

	return body, nil
}

// ClampMaxResults bounds n to the page sizes the endpoint accepts.
func ClampMaxResults(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// countsAsSuccess keeps client-side rejections (bad region, bad key) from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var upstream *models.UpstreamError
	if errors.As(err, &upstream) {
		code := upstream.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// redactKey strips the API key from transport errors, which embed the request URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), key, "REDACTED"), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
