package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
)

var (
	coordA = domain.Coordinate{Lat: 48.8566, Lon: 2.3522}
	coordB = domain.Coordinate{Lat: 45.7640, Lon: 4.8357}
)

// --- fakes ---

// gatedResolver blocks each Resolve call until its coordinate is released.
// It ignores context cancellation so stale results really do come back.
type gatedResolver struct {
	mu    sync.Mutex
	gates map[domain.Coordinate]chan struct{}
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{gates: make(map[domain.Coordinate]chan struct{})}
}

func (g *gatedResolver) gate(c domain.Coordinate) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[c]
	if !ok {
		ch = make(chan struct{})
		g.gates[c] = ch
	}
	return ch
}

func (g *gatedResolver) release(c domain.Coordinate) { close(g.gate(c)) }

func (g *gatedResolver) Resolve(_ context.Context, c domain.Coordinate) domain.CadastralRecord {
	<-g.gate(c)
	return domain.Synthesize(c, domain.Commune{})
}

type instantResolver struct{}

func (instantResolver) Resolve(_ context.Context, c domain.Coordinate) domain.CadastralRecord {
	return domain.Synthesize(c, domain.Commune{Name: "Paris"})
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, q string) []domain.AddressCandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return []domain.AddressCandidate{{Label: q + " (result)", Coordinate: coordA}}
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeExporter struct {
	err error
	got domain.CadastralRecord
}

func (f *fakeExporter) Export(_ context.Context, rec domain.CadastralRecord, _ domain.Coordinate) (report.Result, error) {
	f.got = rec
	if f.err != nil {
		return report.Result{}, f.err
	}
	return report.Result{Filename: report.Filename(rec, 1), PDF: []byte("%PDF-1.3")}, nil
}

type harness struct {
	c       *Coordinator
	events  <-chan domain.Event
	clock   *clockwork.FakeClock
	metrics *observability.Metrics
}

func newHarness(t *testing.T, r Resolver, s Searcher, e Exporter) *harness {
	t.Helper()
	bus := NewBus()
	events, unsubscribe := bus.Subscribe(64)
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	c := New(Options{
		Session:   "test-session",
		Resolver:  r,
		Searcher:  s,
		Exporter:  e,
		Publisher: bus,
		Clock:     clock,
		Debounce:  300 * time.Millisecond,
		Metrics:   metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() {
		c.Close()
		unsubscribe()
	})
	return &harness{c: c, events: events, clock: clock, metrics: metrics}
}

func (h *harness) drain() []domain.Event {
	var out []domain.Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func kinds(events []domain.Event) []domain.EventKind {
	out := make([]domain.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// --- tests ---

func TestCoordinator_ResolvesSelectedCoordinate(t *testing.T) {
	h := newHarness(t, instantResolver{}, nil, nil)

	gen, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	h.c.Wait()

	st := h.c.State()
	assert.Equal(t, uint64(1), gen)
	assert.False(t, st.Pending)
	require.NotNil(t, st.Record)
	assert.Equal(t, "PARIS", st.Record.Commune)
	assert.Equal(t, "AM", st.Record.Section)
	assert.Equal(t, coordA, *st.Active)

	events := h.drain()
	assert.Equal(t, []domain.EventKind{domain.EventResolutionPending, domain.EventRecordResolved}, kinds(events))
	assert.Equal(t, "test-session", events[1].Session)
	assert.Equal(t, uint64(1), events[1].Generation)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.Resolutions.WithLabelValues("synthesized")), 0)
}

func TestCoordinator_LastCoordinateWins(t *testing.T) {
	res := newGatedResolver()
	h := newHarness(t, res, nil, nil)

	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	genB, err := h.c.OnCoordinateSelected(coordB)
	require.NoError(t, err)

	// B completes first, then the slower A arrives late.
	res.release(coordB)
	require.Eventually(t, func() bool { return h.c.State().Record != nil }, time.Second, 5*time.Millisecond)
	res.release(coordA)
	h.c.Wait()

	st := h.c.State()
	require.NotNil(t, st.Record)
	assert.Equal(t, genB, st.Generation)
	assert.Equal(t, coordB, *st.Active)
	assert.Equal(t, domain.Synthesize(coordB, domain.Commune{}), *st.Record)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.StaleDiscarded), 0)

	for _, e := range h.drain() {
		if e.Kind == domain.EventRecordResolved {
			assert.Equal(t, genB, e.Generation, "stale generation must never be published")
		}
	}
}

func TestCoordinator_PendingClearsPreviousRecord(t *testing.T) {
	res := newGatedResolver()
	h := newHarness(t, res, nil, nil)

	res.release(coordA)
	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	h.c.Wait()
	require.NotNil(t, h.c.State().Record)
	h.drain()

	_, err = h.c.OnCoordinateSelected(coordB)
	require.NoError(t, err)

	st := h.c.State()
	assert.True(t, st.Pending)
	assert.Nil(t, st.Record)
	assert.Equal(t, coordB, *st.Active)
	assert.Equal(t, []domain.EventKind{domain.EventRecordCleared, domain.EventResolutionPending}, kinds(h.drain()))

	res.release(coordB)
}

func TestCoordinator_InvalidCoordinate(t *testing.T) {
	h := newHarness(t, instantResolver{}, nil, nil)

	_, err := h.c.OnCoordinateSelected(domain.Coordinate{Lat: math.NaN(), Lon: 2})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
	assert.Zero(t, h.c.State().Generation)
}

func TestCoordinator_SelectCandidate(t *testing.T) {
	h := newHarness(t, instantResolver{}, nil, nil)
	cand := domain.AddressCandidate{Label: "8 Boulevard du Port 80000 Amiens", Coordinate: coordA, City: "Amiens"}

	_, err := h.c.SelectCandidate(cand)
	require.NoError(t, err)
	h.c.Wait()

	st := h.c.State()
	require.NotNil(t, st.Selected)
	assert.Equal(t, cand, *st.Selected)
	assert.Equal(t, cand.Label, st.Query)
	assert.Empty(t, st.Candidates)
	require.NotNil(t, st.Record)
}

func TestCoordinator_MapClickDeselection(t *testing.T) {
	tests := []struct {
		name         string
		click        domain.Coordinate
		wantSelected bool
	}{
		{"same spot", coordA, true},
		{"within tolerance", domain.Coordinate{Lat: coordA.Lat + 0.00009, Lon: coordA.Lon - 0.00009}, true},
		{"lat beyond tolerance", domain.Coordinate{Lat: coordA.Lat + 0.0002, Lon: coordA.Lon}, false},
		{"lon beyond tolerance", domain.Coordinate{Lat: coordA.Lat, Lon: coordA.Lon + 0.0002}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, instantResolver{}, nil, nil)
			_, err := h.c.SelectCandidate(domain.AddressCandidate{Label: "Paris", Coordinate: coordA})
			require.NoError(t, err)

			_, err = h.c.MapClicked(tt.click)
			require.NoError(t, err)
			h.c.Wait()

			st := h.c.State()
			assert.Equal(t, tt.wantSelected, st.Selected != nil)
			assert.Equal(t, tt.click, *st.Active)
		})
	}
}

func TestCoordinator_SearchDebounce(t *testing.T) {
	search := &fakeSearcher{}
	h := newHarness(t, instantResolver{}, search, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, q := range []string{"8 b", "8 bd", "8 bd du port"} {
		require.NoError(t, h.c.OnQueryChanged(q))
		h.clock.Advance(100 * time.Millisecond)
	}
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, search.calls(), "no search before the delay elapses")

	h.clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return len(h.c.State().Candidates) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"8 bd du port"}, search.calls())
	st := h.c.State()
	assert.Equal(t, "8 bd du port", st.Query)
	assert.Equal(t, "8 bd du port (result)", st.Candidates[0].Label)

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventSearchResults, evs[0].Kind)
	assert.Equal(t, "8 bd du port", evs[0].Query)
}

func TestCoordinator_SelectCancelsPendingSearch(t *testing.T) {
	search := &fakeSearcher{}
	h := newHarness(t, instantResolver{}, search, nil)

	require.NoError(t, h.c.OnQueryChanged("amiens"))
	_, err := h.c.SelectCandidate(domain.AddressCandidate{Label: "Amiens", Coordinate: coordA})
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	h.c.Wait()

	assert.Never(t, func() bool { return len(search.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestCoordinator_CenterOnCountry(t *testing.T) {
	h := newHarness(t, instantResolver{}, nil, nil)
	require.NoError(t, h.c.CenterOnCountry())

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventMapCenter, evs[0].Kind)
	assert.Equal(t, FranceCenter, *evs[0].Coordinate)
	assert.Equal(t, 6, evs[0].Zoom)
}

func TestCoordinator_StateIsDeepCopy(t *testing.T) {
	h := newHarness(t, instantResolver{}, nil, nil)
	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	h.c.Wait()

	before := h.c.State()
	mutated := h.c.State()
	mutated.Record.Section = "ZZ"
	mutated.Active.Lat = 0

	if diff := cmp.Diff(before, h.c.State()); diff != "" {
		t.Errorf("state changed through a returned copy (-want +got):\n%s", diff)
	}
}

func TestCoordinator_Export(t *testing.T) {
	exp := &fakeExporter{}
	h := newHarness(t, instantResolver{}, nil, exp)

	_, err := h.c.Export(context.Background())
	require.ErrorIs(t, err, ErrNoRecord)

	_, err = h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	h.c.Wait()
	h.drain()

	res, err := h.c.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "extrait_cadastral_AM_1208_1.pdf", res.Filename)
	assert.Equal(t, "AM", exp.got.Section)

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventExportCompleted, evs[0].Kind)
	assert.Equal(t, res.Filename, evs[0].Filename)
}

func TestCoordinator_ExportFailure(t *testing.T) {
	exp := &fakeExporter{err: report.ErrRender}
	h := newHarness(t, instantResolver{}, nil, exp)
	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	h.c.Wait()
	h.drain()

	_, err = h.c.Export(context.Background())
	require.ErrorIs(t, err, report.ErrRender)

	evs := h.drain()
	require.Len(t, evs, 1)
	assert.Equal(t, domain.EventExportFailed, evs[0].Kind)
	assert.NotEmpty(t, evs[0].Error)
}

func TestCoordinator_ExportWhilePending(t *testing.T) {
	res := newGatedResolver()
	h := newHarness(t, res, nil, &fakeExporter{})
	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)

	_, err = h.c.Export(context.Background())
	require.ErrorIs(t, err, ErrNoRecord)
	res.release(coordA)
}

func TestCoordinator_Close(t *testing.T) {
	res := newGatedResolver()
	h := newHarness(t, res, nil, nil)
	_, err := h.c.OnCoordinateSelected(coordA)
	require.NoError(t, err)

	res.release(coordA)
	h.c.Close()

	_, err = h.c.OnCoordinateSelected(coordB)
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, h.c.OnQueryChanged("x"), ErrClosed)
	assert.ErrorIs(t, h.c.CenterOnCountry(), ErrClosed)
}
