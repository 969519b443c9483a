package coordinator

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
)

func newTestRegistry(t *testing.T, clock clockwork.Clock, sink Publisher) (*Registry, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	r := NewRegistry(RegistryConfig{
		Resolver:         instantResolver{},
		SnapshotMaxBytes: 1 << 20,
		SnapshotScale:    1,
		Debounce:         300 * time.Millisecond,
		TTL:              30 * time.Minute,
		Clock:            clock,
		Sink:             sink,
		Metrics:          m,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(r.Close)
	return r, m
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r, m := newTestRegistry(t, clockwork.NewFakeClock(), nil)

	s := r.Create()
	require.NotEmpty(t, s.ID)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	r, m := newTestRegistry(t, clockwork.NewFakeClock(), nil)
	s := r.Create()

	assert.True(t, r.Remove(s.ID))
	assert.False(t, r.Remove(s.ID))
	assert.Zero(t, r.Len())
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveSessions), 0)

	_, err := s.Coordinator.OnCoordinateSelected(coordA)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistry_SweepExpiresIdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r, _ := newTestRegistry(t, clock, nil)

	idle := r.Create()
	clock.Advance(20 * time.Minute)
	active := r.Create()
	clock.Advance(15 * time.Minute)
	_, _ = r.Get(active.ID)

	assert.Equal(t, 1, r.Sweep())
	_, ok := r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
}

func TestRegistry_SweepKeepsStreamingSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r, _ := newTestRegistry(t, clock, nil)

	s := r.Create()
	_, unsubscribe := s.Bus.Subscribe(1)
	clock.Advance(2 * time.Hour)
	assert.Zero(t, r.Sweep())
	assert.Equal(t, 1, r.Len())

	// Idle time restarts once the stream ends.
	unsubscribe()
	clock.Advance(20 * time.Minute)
	assert.Zero(t, r.Sweep())
	clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Zero(t, r.Len())
}

func TestRegistry_SinkReceivesSessionEvents(t *testing.T) {
	sink := NewBus()
	events, unsubscribe := sink.Subscribe(16)
	defer unsubscribe()

	r, _ := newTestRegistry(t, clockwork.NewFakeClock(), sink)
	s := r.Create()
	_, err := s.Coordinator.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	s.Coordinator.Wait()

	var got []domain.EventKind
	for range 2 {
		select {
		case e := <-events:
			assert.Equal(t, s.ID, e.Session)
			got = append(got, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sink event")
		}
	}
	assert.Equal(t, []domain.EventKind{domain.EventResolutionPending, domain.EventRecordResolved}, got)
}

func TestRegistry_SessionExportUsesUploadedSnapshot(t *testing.T) {
	r, _ := newTestRegistry(t, clockwork.NewFakeClock(), nil)
	s := r.Create()

	_, err := s.Coordinator.OnCoordinateSelected(coordA)
	require.NoError(t, err)
	s.Coordinator.Wait()

	res, err := s.Coordinator.Export(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, res.PDF)
	assert.Contains(t, res.Filename, "extrait_cadastral_AM_1208_")
}
