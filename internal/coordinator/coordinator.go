// Package coordinator owns the per-session resolution state.
//
// Every coordinate the user picks starts a new generation. Resolution runs in
// its own goroutine tagged with that generation, and its result is applied
// only if no newer coordinate arrived in the meantime, so the last coordinate
// always wins regardless of network completion order. Search queries go
// through a debouncer and are applied only while the query is unchanged.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
)

// DefaultDebounce is the search debounce delay.
const DefaultDebounce = 300 * time.Millisecond

// Map position sent by CenterOnCountry.
var (
	FranceCenter = domain.Coordinate{Lat: 46.603354, Lon: 1.888334}
	FranceZoom   = 6
)

var (
	// ErrClosed is returned by operations on a closed coordinator.
	ErrClosed = errors.New("session closed")
	// ErrNoRecord is returned by Export while no record is displayed.
	ErrNoRecord = errors.New("no resolved record to export")
)

// Resolver turns a coordinate into a record. It must not fail.
type Resolver interface {
	Resolve(ctx context.Context, c domain.Coordinate) domain.CadastralRecord
}

// Searcher returns address candidates for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) []domain.AddressCandidate
}

// Exporter renders the extract for a record.
type Exporter interface {
	Export(ctx context.Context, rec domain.CadastralRecord, c domain.Coordinate) (report.Result, error)
}

// State is a snapshot of a session's resolution state. Record always belongs
// to Active; while Pending, Record is nil.
type State struct {
	Active     *domain.Coordinate       `json:"active,omitempty"`
	Record     *domain.CadastralRecord  `json:"record,omitempty"`
	Pending    bool                     `json:"pending"`
	Generation uint64                   `json:"generation"`
	Selected   *domain.AddressCandidate `json:"selected,omitempty"`
	Query      string                   `json:"query"`
	Candidates []domain.AddressCandidate `json:"candidates"`
}

func (s State) clone() State {
	out := s
	if s.Active != nil {
		a := *s.Active
		out.Active = &a
	}
	if s.Record != nil {
		r := s.Record.Clone()
		out.Record = &r
	}
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	out.Candidates = append([]domain.AddressCandidate{}, s.Candidates...)
	return out
}

// Options configures a Coordinator. Searcher, Exporter and Publisher may be nil.
type Options struct {
	Session   string
	Resolver  Resolver
	Searcher  Searcher
	Exporter  Exporter
	Publisher Publisher
	Clock     clockwork.Clock
	Debounce  time.Duration
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Coordinator serializes user interactions for one session.
type Coordinator struct {
	session   string
	resolver  Resolver
	searcher  Searcher
	exporter  Exporter
	publisher Publisher
	debouncer *Debouncer
	metrics   *observability.Metrics
	logger    *slog.Logger

	base       context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	closed bool
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		session:    opts.Session,
		resolver:   opts.Resolver,
		searcher:   opts.Searcher,
		exporter:   opts.Exporter,
		publisher:  opts.Publisher,
		debouncer:  NewDebouncer(opts.Clock, opts.Debounce),
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("session", opts.Session),
		base:       base,
		baseCancel: cancel,
		state:      State{Candidates: []domain.AddressCandidate{}},
	}
}

// OnCoordinateSelected supersedes any in-flight resolution and resolves c.
// It returns the generation assigned to c.
func (c *Coordinator) OnCoordinateSelected(coord domain.Coordinate) (uint64, error) {
	if err := coord.Validate(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	return c.beginLocked(coord), nil
}

// SelectCandidate marks an address candidate as selected and resolves its
// coordinate.
func (c *Coordinator) SelectCandidate(cand domain.AddressCandidate) (uint64, error) {
	if err := cand.Coordinate.Validate(); err != nil {
		return 0, err
	}
	c.debouncer.Cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.state.Selected = &cand
	c.state.Query = cand.Label
	c.state.Candidates = []domain.AddressCandidate{}
	return c.beginLocked(cand.Coordinate), nil
}

// MapClicked resolves a clicked point. A selected candidate stays selected
// only if the click is at its location within domain.LocationTolerance.
func (c *Coordinator) MapClicked(coord domain.Coordinate) (uint64, error) {
	if err := coord.Validate(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if c.state.Selected != nil && !domain.SameLocation(c.state.Selected.Coordinate, coord) {
		c.state.Selected = nil
	}
	return c.beginLocked(coord), nil
}

// beginLocked starts a new generation for coord. c.mu must be held.
func (c *Coordinator) beginLocked(coord domain.Coordinate) uint64 {
	if c.cancel != nil {
		c.cancel()
	}
	hadRecord := c.state.Record != nil

	c.state.Generation++
	gen := c.state.Generation
	c.state.Active = &coord
	c.state.Record = nil
	c.state.Pending = true

	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel

	if hadRecord {
		c.publish(domain.Event{Kind: domain.EventRecordCleared, Generation: gen})
	}
	p := coord
	c.publish(domain.Event{Kind: domain.EventResolutionPending, Generation: gen, Coordinate: &p})

	c.wg.Add(1)
	go c.resolve(ctx, cancel, gen, coord)
	return gen
}

func (c *Coordinator) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, coord domain.Coordinate) {
	defer c.wg.Done()
	defer cancel()

	rec := c.resolver.Resolve(ctx, coord)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.state.Generation || c.closed {
		c.metrics.StaleDiscarded.Inc()
		c.logger.Debug("discarding stale resolution",
			"generation", gen, "current", c.state.Generation, "lat", coord.Lat, "lon", coord.Lon)
		return
	}

	c.state.Record = &rec
	c.state.Pending = false
	c.metrics.Resolutions.WithLabelValues(string(rec.Provenance)).Inc()
	c.logger.Info("record resolved",
		"generation", gen, "reference", rec.Reference(), "commune", rec.Commune, "provenance", rec.Provenance)

	out := rec.Clone()
	p := coord
	c.publish(domain.Event{Kind: domain.EventRecordResolved, Generation: gen, Coordinate: &p, Record: &out})
}

// OnQueryChanged stores the search text and schedules a debounced search.
func (c *Coordinator) OnQueryChanged(query string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state.Query = query
	c.mu.Unlock()

	c.debouncer.Trigger(func() { c.runSearch(query) })
	return nil
}

func (c *Coordinator) runSearch(query string) {
	c.mu.Lock()
	if c.closed || c.state.Query != query {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	results := []domain.AddressCandidate{}
	if c.searcher != nil {
		results = c.searcher.Search(c.base, query)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Query != query {
		c.logger.Debug("discarding stale search results", "query", query)
		return
	}
	c.state.Candidates = results
	c.publish(domain.Event{
		Kind:       domain.EventSearchResults,
		Query:      query,
		Candidates: append([]domain.AddressCandidate{}, results...),
	})
}

// CenterOnCountry asks the client map to recentre on metropolitan France.
func (c *Coordinator) CenterOnCountry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	center := FranceCenter
	c.publish(domain.Event{Kind: domain.EventMapCenter, Coordinate: &center, Zoom: FranceZoom})
	return nil
}

// Export renders the extract for the displayed record. The outcome is
// published as export.completed or export.failed.
func (c *Coordinator) Export(ctx context.Context) (report.Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return report.Result{}, ErrClosed
	}
	if c.state.Record == nil || c.state.Active == nil {
		c.mu.Unlock()
		return report.Result{}, ErrNoRecord
	}
	rec := c.state.Record.Clone()
	coord := *c.state.Active
	gen := c.state.Generation
	c.mu.Unlock()

	if c.exporter == nil {
		return report.Result{}, errors.New("export is not configured")
	}

	res, err := c.exporter.Export(ctx, rec, coord)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.publish(domain.Event{Kind: domain.EventExportFailed, Generation: gen, Error: err.Error()})
		return report.Result{}, fmt.Errorf("export %s: %w", rec.Reference(), err)
	}
	c.publish(domain.Event{Kind: domain.EventExportCompleted, Generation: gen, Filename: res.Filename})
	return res, nil
}

// State returns a deep copy of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Wait blocks until in-flight resolutions and searches have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight work, stops the debouncer and waits for
// goroutines to exit. Further operations return ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.debouncer.Stop()
	c.baseCancel()
	c.wg.Wait()
}

// publish stamps and emits e. c.mu must be held so events keep state order.
func (c *Coordinator) publish(e domain.Event) {
	if c.publisher == nil {
		return
	}
	e.Session = c.session
	e.At = domain.Now()
	c.publisher.Publish(e)
}
