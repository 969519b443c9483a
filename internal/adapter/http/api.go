package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/cadastre-extract-service/internal/coordinator"
	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
	"github.com/couchcryptid/cadastre-extract-service/internal/report"
	"github.com/couchcryptid/cadastre-extract-service/internal/snapshot"
)

const maxJSONBody = 1 << 20

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *coordinator.Session)

// withSession resolves the {id} path value into a live session or answers 404.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, sess)
	}
}

type sessionResponse struct {
	ID    string            `json:"id"`
	State coordinator.State `json:"state"`
}

type generationResponse struct {
	Generation uint64 `json:"generation"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Query      string                    `json:"query"`
	Candidates []domain.AddressCandidate `json:"candidates"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	sharedobs.WriteJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID, State: sess.Coordinator.State()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	candidates := []domain.AddressCandidate{}
	if s.search != nil {
		candidates = s.search.Search(r.Context(), q)
	}
	sharedobs.WriteJSON(w, http.StatusOK, searchResponse{Query: q, Candidates: candidates})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request, sess *coordinator.Session) {
	sharedobs.WriteJSON(w, http.StatusOK, sess.Coordinator.State())
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := sess.Coordinator.OnQueryChanged(req.Query); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	var cand domain.AddressCandidate
	if !decodeJSON(w, r, &cand) {
		return
	}
	gen, err := sess.Coordinator.SelectCandidate(cand)
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, generationResponse{Generation: gen})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	var coord domain.Coordinate
	if !decodeJSON(w, r, &coord) {
		return
	}
	gen, err := sess.Coordinator.MapClicked(coord)
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusAccepted, generationResponse{Generation: gen})
}

func (s *Server) handleCenter(w http.ResponseWriter, _ *http.Request, sess *coordinator.Session) {
	if err := sess.Coordinator.CenterOnCountry(); err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	res, err := sess.Coordinator.Export(r.Context())
	if err != nil {
		s.writeCoordinatorError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PDF)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.PDF); err != nil {
		s.logger.Warn("export write failed", "session", sess.ID, "error", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, sess *coordinator.Session) {
	data, err := io.ReadAll(io.LimitReader(r.Body, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read snapshot: "+err.Error())
		return
	}
	meta, err := sess.Snapshots.Put(data)
	switch {
	case errors.Is(err, snapshot.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, snapshot.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
			"format": meta.Format,
			"width":  meta.Width,
			"height": meta.Height,
		})
	}
}

func (s *Server) writeCoordinatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, coordinator.ErrNoRecord):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coordinator.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, report.ErrRender):
		s.logger.Error("export render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "document generation failed")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
