// Package banadresse implements domain.Geocoder on top of the Base Adresse
// Nationale API (api-adresse.data.gouv.fr).
package banadresse

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
	"unicode/utf8"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// DefaultBaseURL is the public Base Adresse Nationale endpoint.
const DefaultBaseURL = "https://api-adresse.data.gouv.fr"

const searchLimit = 10

// Client implements domain.Geocoder using the Base Adresse Nationale API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an address API client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns up to 10 address candidates in upstream order. Short queries
// never reach the network; failures are logged and yield an empty result.
func (c *Client) Search(ctx context.Context, query string) []domain.AddressCandidate {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < domain.MinQueryLength {
		c.metrics.GeocodeRequests.WithLabelValues("search", "skipped").Inc()
		return []domain.AddressCandidate{}
	}

	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(searchLimit)},
	}
	resp, err := c.doRequest(ctx, c.baseURL+"/search/?"+params.Encode(), "search")
	if err != nil {
		c.logger.Warn("address search failed", "query", query, "error", err)
		return []domain.AddressCandidate{}
	}

	candidates := make([]domain.AddressCandidate, 0, len(resp.Features))
	for _, f := range resp.Features {
		if len(f.Geometry.Coordinates) != 2 {
			continue
		}
		candidates = append(candidates, domain.AddressCandidate{
			Label: f.Properties.Label,
			Coordinate: domain.Coordinate{
				Lat: f.Geometry.Coordinates[1],
				Lon: f.Geometry.Coordinates[0],
			},
			City:       f.Properties.City,
			PostalCode: f.Properties.Postcode,
			Context:    f.Properties.Context,
		})
	}
	return candidates
}

// Reverse returns the commune containing the coordinate.
func (c *Client) Reverse(ctx context.Context, coord domain.Coordinate) (domain.Commune, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(coord.Lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(coord.Lon, 'f', 6, 64)},
		"limit": {"1"},
	}
	resp, err := c.doRequest(ctx, c.baseURL+"/reverse/?"+params.Encode(), "reverse")
	if err != nil {
		return domain.Commune{}, err
	}
	if len(resp.Features) == 0 {
		return domain.Commune{}, nil
	}
	p := resp.Features[0].Properties
	return domain.Commune{Name: p.City, Code: p.CityCode}, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return response{}, fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return response{}, fmt.Errorf("address API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return response{}, fmt.Errorf("decode response: %w", err)
	}

	outcome := "success"
	if len(out.Features) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	return out, nil
}

// Address API response types (GeoJSON FeatureCollection).

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

type properties struct {
	Label    string  `json:"label"`
	City     string  `json:"city"`
	CityCode string  `json:"citycode"`
	Postcode string  `json:"postcode"`
	Context  string  `json:"context"`
	Score    float64 `json:"score"`
}
