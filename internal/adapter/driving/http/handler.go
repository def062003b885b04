// Package httphandler is the HTTP driving adapter that exposes the tracking
// engine's mutators and a manual poll trigger as a REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/gitwatch/internal/application"
)

// Handler serves the REST API over the tracker service.
type Handler struct {
	tracker  *application.TrackerService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(tracker *application.TrackerService, logger *slog.Logger) *Handler {
	return &Handler{
		tracker:  tracker,
		validate: validator.New(),
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/tenants/{tenant}/tracked", h.ListTracked)
	mux.HandleFunc("POST /api/v1/tenants/{tenant}/tracked/repos", h.TrackRepo)
	mux.HandleFunc("POST /api/v1/tenants/{tenant}/tracked/orgs", h.TrackOrg)
	mux.HandleFunc("DELETE /api/v1/tenants/{tenant}/tracked/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("DELETE /api/v1/tenants/{tenant}/tracked/orgs/{org}", h.RemoveOrg)
	mux.HandleFunc("POST /api/v1/poll", h.TriggerPoll)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListTracked returns a tenant's tracked entries.
func (h *Handler) ListTracked(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	entries := h.tracker.List(tenantID)
	resp := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toEntryResponse(entry))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TrackRepo starts tracking a single repository for a tenant.
func (h *Handler) TrackRepo(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	var req TrackRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "owner, repo, and channel_id are required")
		return
	}

	if err := h.tracker.Track(r.Context(), tenantID, req.Owner, req.Repo, req.ChannelID); err != nil {
		h.logger.Error("track repo failed", "tenant", tenantID, "owner", req.Owner, "repo", req.Repo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, TrackRepoResponse{
		Owner:     req.Owner,
		Repo:      req.Repo,
		ChannelID: req.ChannelID,
	})
}

// TrackOrg starts tracking every repository of an organization for a tenant.
func (h *Handler) TrackOrg(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")

	var req TrackOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "org and channel_id are required")
		return
	}

	repos, err := h.tracker.TrackOrganization(r.Context(), tenantID, req.Org, req.ChannelID)
	if err != nil {
		h.logger.Error("track org failed", "tenant", tenantID, "org", req.Org, "error", err)
		writeError(w, http.StatusBadGateway, "could not resolve organization")
		return
	}

	writeJSON(w, http.StatusCreated, TrackOrgResponse{
		Org:       req.Org,
		ChannelID: req.ChannelID,
		Repos:     repos,
	})
}

// RemoveRepo stops tracking a repository. Responds 404 when nothing matched.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	owner := r.PathValue("owner")
	repo := r.PathValue("repo")

	removed, err := h.tracker.Remove(r.Context(), tenantID, owner, repo)
	if err != nil {
		h.logger.Error("remove repo failed", "tenant", tenantID, "owner", owner, "repo", repo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "repository is not tracked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveOrg stops tracking an organization. Responds 404 when nothing matched.
func (h *Handler) RemoveOrg(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	org := r.PathValue("org")

	removed, err := h.tracker.RemoveOrganization(r.Context(), tenantID, org)
	if err != nil {
		h.logger.Error("remove org failed", "tenant", tenantID, "org", org, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "organization is not tracked")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerPoll runs an on-demand poll pass, bypassing the interval.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	updates, err := h.tracker.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "poll canceled")
			return
		}
		h.logger.Error("manual poll failed", "error", err)
		writeError(w, http.StatusBadGateway, "poll failed")
		return
	}

	writeJSON(w, http.StatusOK, PollResponse{Events: len(updates)})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
