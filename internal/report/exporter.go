package report

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

// Result is a rendered extract.
type Result struct {
	Document Document
	Filename string
	PDF      []byte
}

// Exporter captures the map, composes the extract and renders it.
type Exporter struct {
	snapshots domain.SnapshotProvider
	composer  *Composer
	scale     float64
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewExporter creates an Exporter. A nil snapshot provider produces extracts
// without the map section.
func NewExporter(snapshots domain.SnapshotProvider, composer *Composer, scale float64, metrics *observability.Metrics, logger *slog.Logger) *Exporter {
	return &Exporter{
		snapshots: snapshots,
		composer:  composer,
		scale:     scale,
		metrics:   metrics,
		logger:    logger,
	}
}

// Export produces the PDF extract for rec at coord. A snapshot that cannot be
// captured or embedded only drops the map section; any other render failure
// returns an error wrapping ErrRender and no bytes.
func (e *Exporter) Export(ctx context.Context, rec domain.CadastralRecord, coord domain.Coordinate) (Result, error) {
	start := time.Now()
	defer func() {
		e.metrics.ExportDuration.Observe(time.Since(start).Seconds())
	}()

	snap := e.capture(ctx)
	if err := ctx.Err(); err != nil {
		e.metrics.Exports.WithLabelValues("cancelled").Inc()
		return Result{}, err
	}

	doc := e.composer.Compose(rec, coord, snap)
	var buf bytes.Buffer
	err := RenderPDF(doc, &buf)
	if err != nil && snap != nil {
		e.metrics.SnapshotFailures.Inc()
		e.logger.Warn("map snapshot could not be embedded, exporting without it", "error", err)
		snap = nil
		doc = e.composer.Compose(rec, coord, nil)
		buf.Reset()
		err = RenderPDF(doc, &buf)
	}
	if err != nil {
		e.metrics.Exports.WithLabelValues("failure").Inc()
		e.logger.Error("export failed", "reference", rec.Reference(), "error", err)
		return Result{}, err
	}

	e.metrics.Exports.WithLabelValues("success").Inc()
	e.logger.Info("extract exported",
		"filename", doc.Filename,
		"pages", len(doc.Pages),
		"snapshot", snap != nil,
		"provenance", rec.Provenance,
	)
	return Result{Document: doc, Filename: doc.Filename, PDF: buf.Bytes()}, nil
}

func (e *Exporter) capture(ctx context.Context) *domain.ImageBuffer {
	if e.snapshots == nil {
		return nil
	}
	img, err := e.snapshots.Capture(ctx, e.scale)
	if err != nil {
		e.metrics.SnapshotFailures.Inc()
		e.logger.Warn("map snapshot unavailable, exporting without it", "error", err)
		return nil
	}
	if img.Empty() {
		return nil
	}
	return &img
}
