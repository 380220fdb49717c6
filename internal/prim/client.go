// Package prim talks to the Île-de-France Mobilités PRIM marketplace API:
// SIRI-Lite stop-monitoring requests, the credential check, and direction
// discovery for the configuration flows.
package prim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// DefaultBaseURL is the PRIM marketplace root.
const DefaultBaseURL = "https://prim.iledefrance-mobilites.fr/marketplace"

// TestStopID is a busy stop known to answer; the credential check queries it
// so a valid key always gets a SIRI envelope back.
const TestStopID = "STIF:StopPoint:Q:473921:"

const (
	apiKeyHeader = "apikey"

	// maxBodySize bounds stop-monitoring responses. Busy hubs answer with a
	// few hundred KB; anything near this limit is garbage.
	maxBodySize = 10 * 1024 * 1024

	testConnectionTimeout = 10 * time.Second
)

// Sentinel errors the fetcher's retry policy dispatches on.
var (
	ErrNoAPIKey        = errors.New("no API key configured")
	ErrUnknownStop     = errors.New("unknown stop")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidResponse = errors.New("invalid response body")
)

// StatusError reports a non-200 upstream status that has no dedicated
// sentinel.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("PRIM returned status %d", e.Code)
}

// KeySource provides the API credential at call time, so key changes made
// through the admin endpoints apply without rebuilding the client.
type KeySource interface {
	APIKey() string
}

// StaticKey is a KeySource for a fixed credential, used by the CLI wizard to
// test candidate keys before persisting them.
type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

// primHTTPClient is the shared HTTP client for all PRIM calls, configured
// with explicit timeouts and transport limits to avoid the pitfalls of
// http.DefaultClient (no timeout, shared global state). The transport is
// cloned from http.DefaultTransport to preserve important defaults
// (ProxyFromEnvironment, DialContext, HTTP/2, keepalives).
var primHTTPClient = newPRIMHTTPClient()

func newPRIMHTTPClient() *http.Client {
	var transport *http.Transport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = t.Clone()
	} else {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 50
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second

	return &http.Client{
		// Absolute safety net per request. Callers set stricter context
		// timeouts; keep this above them so the context deadline is the one
		// that fires in normal operation.
		Timeout:   15 * time.Second,
		Transport: transport,
	}
}

// Client issues stop-monitoring requests against one PRIM deployment.
type Client struct {
	baseURL    string
	keys       KeySource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a Client for the given base URL (DefaultBaseURL when
// empty) reading credentials from keys.
func NewClient(baseURL string, keys KeySource, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keys:       keys,
		httpClient: primHTTPClient,
		logger:     logger.With(slog.String("component", "prim_client")),
	}
}

func (c *Client) stopMonitoringURL(stopID, lineID string) string {
	params := url.Values{}
	params.Set("MonitoringRef", stopID)
	if lineID != "" {
		params.Set("LineRef", lineID)
	}
	return c.baseURL + "/stop-monitoring?" + params.Encode()
}

func (c *Client) newRequest(ctx context.Context, rawURL, key string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// GetStopMonitoring fetches the SIRI-Lite stop-monitoring feed for one stop,
// optionally restricted to a line. Upstream statuses map onto the sentinel
// errors: 400 means the stop reference is unknown, 429 means the quota is
// exhausted, anything else non-200 becomes a StatusError.
func (c *Client) GetStopMonitoring(ctx context.Context, stopID, lineID string) (*idfm.SiriResponse, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, ErrNoAPIKey
	}

	req, err := c.newRequest(ctx, c.stopMonitoringURL(stopID, lineID), key)
	if err != nil {
		return nil, fmt.Errorf("building stop-monitoring request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling stop-monitoring: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("stop %s: %w", stopID, ErrUnknownStop)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("stop %s: %w", stopID, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := readBoundedBody(resp.Body)
	if err != nil {
		return nil, err
	}

	var response idfm.SiriResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decoding stop-monitoring body: %w", ErrInvalidResponse)
	}
	return &response, nil
}

// ListDirections fetches live monitoring for a stop and returns the distinct
// destinations observed, in discovery order. Each line and destination pair
// appears once.
func (c *Client) ListDirections(ctx context.Context, stopID, lineID string) ([]models.Direction, error) {
	response, err := c.GetStopMonitoring(ctx, stopID, lineID)
	if err != nil {
		return nil, err
	}

	directions := []models.Direction{}
	seen := make(map[string]struct{})

	deliveries := response.Siri.ServiceDelivery.StopMonitoringDelivery
	if len(deliveries) == 0 {
		return directions, nil
	}
	for _, visit := range deliveries[0].MonitoredStopVisit {
		journey := visit.MonitoredVehicleJourney
		if len(journey.DestinationName) == 0 {
			continue
		}
		destination := journey.DestinationName[0].Value
		lineRef := journey.LineRef.Value

		key := lineRef + ":" + destination
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		directions = append(directions, models.Direction{
			Direction:   destination,
			DirectionID: journey.DestinationRef.Value,
			LineID:      lineRef,
			LineName:    idfm.LineLabel(lineRef, &journey),
		})
	}
	return directions, nil
}

// TestConnection checks the configured credential against the fixed test
// stop. It always returns a result rather than an error; failures become
// user-facing messages.
func (c *Client) TestConnection(ctx context.Context) models.TestConnectionResult {
	ctx, cancel := context.WithTimeout(ctx, testConnectionTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, c.stopMonitoringURL(TestStopID, ""), c.keys.APIKey())
	if err != nil {
		return models.TestConnectionResult{Success: false, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return models.TestConnectionResult{Success: false, Message: models.TimeoutMessage}
		}
		return models.TestConnectionResult{Success: false, Message: err.Error()}
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "http_response_body")

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := readBoundedBody(resp.Body)
		if err != nil {
			return models.TestConnectionResult{Success: false, Message: models.InvalidResponseMessage}
		}
		// Some gateway errors come back as 200 with a quota notice in the
		// body instead of a 429.
		if containsRateLimitNotice(body) {
			return models.TestConnectionResult{Success: false, Message: models.RateLimitedMessage}
		}
		if idfm.ContainsSiri(body) {
			return models.TestConnectionResult{Success: true, Message: models.ConnectedMessage}
		}
		return models.TestConnectionResult{Success: false, Message: models.InvalidResponseMessage}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.TestConnectionResult{Success: false, Message: models.InvalidKeyMessage}
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.TestConnectionResult{Success: false, Message: models.RateLimitedMessage}
	default:
		return models.TestConnectionResult{Success: false, Message: models.ErrorMessageForStatus(resp.StatusCode)}
	}
}

func readBoundedBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response exceeds size limit of %d bytes", maxBodySize)
	}
	return body, nil
}

// IsTimeout reports whether err is a deadline or transport timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

var rateLimitNotices = []string{"rate limit", "quota", "too many requests"}

func containsRateLimitNotice(body []byte) bool {
	lowered := strings.ToLower(string(body))
	for _, notice := range rateLimitNotices {
		if strings.Contains(lowered, notice) {
			return true
		}
	}
	return false
}
