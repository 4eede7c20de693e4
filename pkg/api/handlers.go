package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RefreshAllResponse lists the views a bulk refresh started.
type RefreshAllResponse struct {
	Started []views.Kind `json:"started"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"views":  len(s.board.Kinds()),
	})
}

func (s *Server) handleViews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Snapshots())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, err := s.board.View(views.Kind(mux.Vars(r)["kind"]))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	kind := views.Kind(mux.Vars(r)["kind"])
	// The refresh outlives the request.
	snap, err := s.board.Trigger(context.WithoutCancel(r.Context()), kind)
	switch {
	case errors.Is(err, views.ErrUnknownView):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, views.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.log.Errorw("failed to start refresh", "view", string(kind), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, snap)
	}
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	started := s.board.TriggerAll(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, RefreshAllResponse{Started: started})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Debugw("websocket upgrade failed", "error", err)
		return
	}
	s.hub.Serve(conn, s.board.Snapshots())
}
