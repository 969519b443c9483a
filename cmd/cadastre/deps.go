package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/cadastre-extract-service/internal/adapter/apicarto"
	"github.com/couchcryptid/cadastre-extract-service/internal/adapter/banadresse"
	"github.com/couchcryptid/cadastre-extract-service/internal/adapter/rediscache"
	"github.com/couchcryptid/cadastre-extract-service/internal/config"
	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
	"github.com/couchcryptid/cadastre-extract-service/internal/resolver"
)

// deps holds the components shared by every subcommand.
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	geocoder domain.Geocoder
	resolver *resolver.Resolver
	composer *report.Composer
	redis    *redis.Client
}

// buildDeps wires geocoding, parcel lookup and report branding from cfg.
// An unreachable Redis disables the parcel cache instead of failing.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	d := &deps{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	client := banadresse.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout, d.metrics, logger)
	d.geocoder = banadresse.NewCachedGeocoder(client, cfg.GeocoderCacheSize, d.metrics)

	switch cfg.ResolverBackend {
	case config.BackendSynthetic:
		d.resolver = resolver.NewSynthetic(d.geocoder, d.metrics, logger)
		logger.Info("parcel lookup disabled, all records are synthesized")
	default:
		var parcels domain.ParcelSource = apicarto.NewClient(cfg.ParcelBaseURL, cfg.ParcelTimeout, d.metrics, logger)
		if cfg.RedisAddr != "" {
			rdb, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				logger.Warn("redis unavailable, parcel cache disabled", "addr", cfg.RedisAddr, "error", err)
			} else {
				d.redis = rdb
				parcels = rediscache.NewParcelCache(parcels, rdb, cfg.RedisTTL, d.metrics, logger)
				logger.Info("redis parcel cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
			}
		}
		d.resolver = resolver.NewLive(parcels, d.geocoder, d.metrics, logger)
	}

	branding, err := report.LoadBranding(cfg.ReportBrandingFile)
	if err != nil {
		d.close()
		return nil, err
	}
	d.composer = report.NewComposer(branding)
	return d, nil
}

func (d *deps) close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.logger.Error("redis close error", "error", err)
		}
	}
}

// parseCoordinate reads "<lat> <lon>" positional arguments.
func parseCoordinate(args []string) (domain.Coordinate, error) {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid latitude %q: %w", args[0], err)
	}
	lon, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("invalid longitude %q: %w", args[1], err)
	}
	c := domain.Coordinate{Lat: lat, Lon: lon}
	return c, c.Validate()
}

// loadCLIConfig loads configuration for one-shot commands, which log to
// stderr so stdout stays machine-readable.
func loadCLIConfig(logOut io.Writer, synthetic bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if synthetic {
		cfg.ResolverBackend = config.BackendSynthetic
	}
	return cfg, observability.NewLoggerTo(logOut, cfg.LogLevel, cfg.LogFormat), nil
}
