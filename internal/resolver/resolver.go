// Package resolver turns a coordinate into a CadastralRecord. The live
// backend asks the authoritative parcel source first and falls back to
// deterministic synthesis; the synthetic backend always synthesizes.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// Fallback reasons recorded on the fallbacks metric.
const (
	ReasonError    = "error"
	ReasonEmpty    = "empty"
	ReasonDisabled = "disabled"
)

// Resolver resolves coordinates into cadastral records. It never fails:
// lookup faults degrade to a synthesized record.
type Resolver struct {
	parcels  domain.ParcelSource
	geocoder domain.Geocoder
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewLive creates a resolver that queries parcels before synthesizing. A nil
// geocoder disables commune lookup for synthesized records.
func NewLive(parcels domain.ParcelSource, geocoder domain.Geocoder, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{parcels: parcels, geocoder: geocoder, metrics: metrics, logger: logger}
}

// NewSynthetic creates a resolver that only synthesizes records.
func NewSynthetic(geocoder domain.Geocoder, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, metrics: metrics, logger: logger}
}

// Backend reports "live" or "synthetic".
func (r *Resolver) Backend() string {
	if r.parcels == nil {
		return "synthetic"
	}
	return "live"
}

// Resolve returns the record for coord. The first parcel of a non-empty
// lookup wins; anything else synthesizes.
func (r *Resolver) Resolve(ctx context.Context, coord domain.Coordinate) domain.CadastralRecord {
	start := time.Now()
	defer func() {
		r.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	if r.parcels == nil {
		return r.synthesize(ctx, coord, ReasonDisabled)
	}

	parcels, err := r.parcels.ParcelsAt(ctx, coord)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			r.logger.Debug("parcel lookup cancelled", "lat", coord.Lat, "lon", coord.Lon)
		} else {
			r.logger.Warn("parcel lookup failed, synthesizing record",
				"lat", coord.Lat, "lon", coord.Lon, "error", err)
		}
		return r.synthesize(ctx, coord, ReasonError)
	case len(parcels) == 0:
		r.logger.Info("no parcel at coordinate, synthesizing record", "lat", coord.Lat, "lon", coord.Lon)
		return r.synthesize(ctx, coord, ReasonEmpty)
	}

	return domain.RecordFromParcel(parcels[0])
}

func (r *Resolver) synthesize(ctx context.Context, coord domain.Coordinate, reason string) domain.CadastralRecord {
	r.metrics.Fallbacks.WithLabelValues(reason).Inc()
	return domain.Synthesize(coord, r.commune(ctx, coord))
}

// commune is advisory: any failure yields the zero Commune.
func (r *Resolver) commune(ctx context.Context, coord domain.Coordinate) domain.Commune {
	if r.geocoder == nil || ctx.Err() != nil {
		return domain.Commune{}
	}
	c, err := r.geocoder.Reverse(ctx, coord)
	if err != nil {
		r.logger.Warn("reverse geocoding failed, using unknown commune",
			"lat", coord.Lat, "lon", coord.Lon, "error", err)
		return domain.Commune{}
	}
	return c
}
