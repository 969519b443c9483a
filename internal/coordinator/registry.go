package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/cadastre-extract-service/internal/observability"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
	"github.com/couchcryptid/cadastre-extract-service/internal/snapshot"
)

// Session bundles the per-user state: coordinator, event bus and the latest
// uploaded map view.
type Session struct {
	ID          string
	Coordinator *Coordinator
	Bus         *Bus
	Snapshots   *snapshot.Store

	lastSeen time.Time
}

// RegistryConfig holds what every new session is built from.
type RegistryConfig struct {
	Resolver         Resolver
	Searcher         Searcher
	Composer         *report.Composer
	SnapshotMaxBytes int64
	SnapshotScale    float64
	Debounce         time.Duration
	TTL              time.Duration
	Clock            clockwork.Clock
	// Sink receives every session's events in addition to the session bus.
	Sink    Publisher
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Registry is the in-memory table of live sessions. Sessions idle for longer
// than the TTL are removed by Sweep.
type Registry struct {
	cfg RegistryConfig

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Composer == nil {
		cfg.Composer = report.NewComposer(report.DefaultBranding())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{cfg: cfg, sessions: make(map[string]*Session)}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	logger := r.cfg.Logger.With("session", id)
	bus := NewBus()
	store := snapshot.NewStore(r.cfg.SnapshotMaxBytes)

	s := &Session{
		ID:        id,
		Bus:       bus,
		Snapshots: store,
		Coordinator: New(Options{
			Session:   id,
			Resolver:  r.cfg.Resolver,
			Searcher:  r.cfg.Searcher,
			Exporter:  report.NewExporter(store, r.cfg.Composer, r.cfg.SnapshotScale, r.cfg.Metrics, logger),
			Publisher: Publishers{bus, r.cfg.Sink},
			Clock:     r.cfg.Clock,
			Debounce:  r.cfg.Debounce,
			Metrics:   r.cfg.Metrics,
			Logger:    r.cfg.Logger,
		}),
		lastSeen: r.cfg.Clock.Now(),
	}

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.cfg.Metrics.ActiveSessions.Set(float64(n))
	logger.Info("session created")
	return s
}

// Get returns the session and marks it as recently used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.cfg.Clock.Now()
	}
	return s, ok
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	closeSession(s)
	r.cfg.Metrics.ActiveSessions.Set(float64(n))
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed. A session with an open event subscription is in use and
// never idle.
func (r *Registry) Sweep() int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	now := r.cfg.Clock.Now()
	cutoff := now.Add(-r.cfg.TTL)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.Bus.Subscribers() > 0 {
			s.lastSeen = now
			continue
		}
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		closeSession(s)
		r.cfg.Logger.Info("session expired", "session", s.ID)
	}
	r.cfg.Metrics.ActiveSessions.Set(float64(n))
	return len(expired)
}

// Run sweeps expired sessions every half TTL until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r.cfg.TTL <= 0 {
		return
	}
	ticker := r.cfg.Clock.NewTicker(r.cfg.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		closeSession(s)
	}
	r.cfg.Metrics.ActiveSessions.Set(0)
}

func closeSession(s *Session) {
	s.Coordinator.Close()
	s.Bus.Close()
}
