package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// DefaultBANBaseURL is the public BAN (Base Adresse Nationale) geocoder.
const DefaultBANBaseURL = "https://api-adresse.data.gouv.fr"

const (
	addressSearchLimit = 10
	banRequestTimeout  = 10 * time.Second
	maxBANBodySize     = 2 << 20
)

// Results whose context field carries none of these markers are outside
// Île-de-France and dropped.
var idfContextMarkers = []string{"75", "77", "78", "91", "92", "93", "94", "95", "Île-de-France"}

// AddressClient geocodes free-form text through the BAN API.
type AddressClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAddressClient returns a client for the BAN geocoder. An empty baseURL
// selects the public instance.
func NewAddressClient(baseURL string, logger *slog.Logger) *AddressClient {
	if baseURL == "" {
		baseURL = DefaultBANBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AddressClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: banRequestTimeout},
		logger:     logger.With(slog.String("component", "address_client")),
	}
}

type banResponse struct {
	Features []struct {
		Properties struct {
			Label    string `json:"label"`
			City     string `json:"city"`
			Postcode string `json:"postcode"`
			Context  string `json:"context"`
			Type     string `json:"type"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// SearchAddress geocodes query and returns the matches inside Île-de-France,
// in the order the geocoder ranked them.
func (c *AddressClient) SearchAddress(ctx context.Context, query string) ([]models.AddressResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(addressSearchLimit))
	params.Set("autocomplete", "1")

	reqURL := c.baseURL + "/search/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("address search request failed: %w", err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, "BAN response body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("address API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBANBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read address API response: %w", err)
	}

	var decoded banResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode address API response: %w", err)
	}

	var results []models.AddressResult
	for _, feature := range decoded.Features {
		if !inIleDeFrance(feature.Properties.Context) {
			continue
		}
		coords := feature.Geometry.Coordinates
		if len(coords) < 2 {
			continue
		}

		results = append(results, models.AddressResult{
			Label:    feature.Properties.Label,
			City:     feature.Properties.City,
			Postcode: feature.Properties.Postcode,
			Lon:      coords[0],
			Lat:      coords[1],
			Type:     feature.Properties.Type,
		})
	}
	return results, nil
}

func inIleDeFrance(context string) bool {
	for _, marker := range idfContextMarkers {
		if strings.Contains(context, marker) {
			return true
		}
	}
	return false
}
