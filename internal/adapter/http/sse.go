package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/cadastre-extract-service/internal/coordinator"
)

const (
	sseBuffer    = 32
	sseKeepAlive = 15 * time.Second
)

// handleEvents streams session events as server-sent events. The current
// state is sent first as a "state" event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	events, unsubscribe := sess.Bus.Subscribe(sseBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "state", sess.Coordinator.State()); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Debug("sse flush failed", "session", sess.ID, "error", err)
		return
	}

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(e.Kind), e); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
