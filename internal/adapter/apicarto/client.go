// Package apicarto implements domain.ParcelSource on top of the IGN API Carto
// cadastre module.
package apicarto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// DefaultBaseURL is the public API Carto cadastre endpoint.
const DefaultBaseURL = "https://apicarto.ign.fr/api/cadastre"

// Client queries parcels intersecting a point.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an API Carto cadastre client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
		logger:     logger,
	}
}

// ParcelsAt returns the parcels whose geometry contains the coordinate, in
// upstream order. An empty slice with a nil error means no parcel matched.
func (c *Client) ParcelsAt(ctx context.Context, coord domain.Coordinate) ([]domain.ParcelFeature, error) {
	geom, err := pointGeometry(coord)
	if err != nil {
		return nil, err
	}
	fullURL := c.baseURL + "/parcelle?" + url.Values{"geom": {geom}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ParcelAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ParcelRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parcel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.ParcelRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cadastre API error: status %d: %s", resp.StatusCode, body)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.metrics.ParcelRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	parcels := make([]domain.ParcelFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		parcels = append(parcels, f.Properties)
	}
	if len(parcels) == 0 {
		c.metrics.ParcelRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.ParcelRequests.WithLabelValues("success").Inc()
	}
	c.logger.Debug("parcel lookup", "lat", coord.Lat, "lon", coord.Lon, "parcels", len(parcels))
	return parcels, nil
}

// pointGeometry encodes the coordinate as a GeoJSON Point ([lon, lat] order).
func pointGeometry(coord domain.Coordinate) (string, error) {
	b, err := json.Marshal(point{Type: "Point", Coordinates: [2]float64{coord.Lon, coord.Lat}})
	if err != nil {
		return "", fmt.Errorf("encode geometry: %w", err)
	}
	return string(b), nil
}

// API Carto request/response types.

type point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type featureCollection struct {
	Features []struct {
		Properties domain.ParcelFeature `json:"properties"`
	} `json:"features"`
}
