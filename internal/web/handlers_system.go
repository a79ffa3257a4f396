package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gradebook/internal/alert"
	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

// healthTimeout bounds the database ping of the health check.
const healthTimeout = 2 * time.Second

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status   string                    `json:"status"`
	Database string                    `json:"database"`
	Imports  *core.ImportLimiterStatus `json:"imports,omitempty"`
}

// invalidateRequest is the body of POST /cache/invalidate.
type invalidateRequest struct {
	Keys []string `json:"keys"`
}

// handleHealth reports readiness. It fails with 503 when the database is
// unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	if s.svc.Imports != nil {
		st := s.svc.Imports.Limiter().Status()
		resp.Imports = &st
	}

	if s.svc.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.svc.Database.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListAlerts returns retained alerts, oldest first. ?limit=N keeps the
// newest N.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.svc.Alerts.List()
	if limit := parseIntParam(r, "limit", 0); limit > 0 && len(alerts) > limit {
		alerts = alerts[len(alerts)-limit:]
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Alerts.Dismiss(chi.URLParam(r, "alertID")) {
		writeError(w, r, http.StatusNotFound, "alert not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidateCache drops the given cache keys so the next read refetches.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Keys) == 0 {
		writeError(w, r, http.StatusBadRequest, "keys must not be empty")
		return
	}

	s.svc.Cache.InvalidateCache(req.Keys...)
	logging.FromContext(r.Context()).Info("cache invalidated", "keys", req.Keys)
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": len(req.Keys)})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.svc.Cache.ClearCache()
	logging.FromContext(r.Context()).Info("cache cleared")
	w.WriteHeader(http.StatusNoContent)
}
