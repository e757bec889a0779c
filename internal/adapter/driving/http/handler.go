package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/organized-thot/brodev3-antidetect/internal/application"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
	"github.com/organized-thot/brodev3-antidetect/internal/domain/port/driven"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
	maxBodyBytes      = 1 << 20
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	profiles *application.ProfileService
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(profiles *application.ProfileService, logger *slog.Logger) *Handler {
	return &Handler{
		profiles: profiles,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request-id, logging, timeout and recovery middleware. requestTimeout
// bounds every handler's context; zero leaves requests unbounded.
func NewServeMux(h *Handler, logger *slog.Logger, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/profiles", h.ListProfiles)
	mux.HandleFunc("GET /api/v1/profiles/selected", h.ListSelected)
	mux.HandleFunc("GET /api/v1/profiles/{name}", h.GetProfile)
	mux.HandleFunc("PUT /api/v1/profiles/{name}", h.PutProfile)
	mux.HandleFunc("DELETE /api/v1/profiles/{name}", h.DeleteProfile)
	mux.HandleFunc("POST /api/v1/profiles/{name}/open", h.OpenProfile)
	mux.HandleFunc("POST /api/v1/profiles/{name}/close", h.CloseProfile)
	mux.HandleFunc("POST /api/v1/profiles/{name}/select", h.selectHandler(true))
	mux.HandleFunc("POST /api/v1/profiles/{name}/deselect", h.selectHandler(false))
	mux.HandleFunc("GET /api/v1/profiles/{name}/events", h.ProfileEvents)
	mux.HandleFunc("GET /api/v1/orphans", h.Orphans)
	mux.HandleFunc("GET /api/v1/events", h.Events)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = timeoutMiddleware(requestTimeout, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListProfiles returns every profile name in table order. A remote failure
// yields an empty list.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.profiles.ListProfiles(r.Context())))
}

// ListSelected returns the names of selected profiles.
func (h *Handler) ListSelected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.profiles.ListSelected(r.Context())))
}

// GetProfile returns a single profile record by exact name.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	row, ok := h.profiles.GetProfile(r.Context(), r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(row))
}

// PutProfile creates the profile directory and creates or updates the record.
// The body is a JSON object of field values.
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	fields := model.Record{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: expected a JSON object")
		return
	}

	name, err := h.profiles.CreateProfile(r.Context(), r.PathValue("name"), fields)
	if err != nil {
		h.writeServiceError(w, "failed to save profile", r.PathValue("name"), err)
		return
	}

	writeJSON(w, http.StatusOK, SavedProfileResponse{Name: name})
}

// DeleteProfile removes the profile directory and its record. An unknown
// name still has its directory removed and answers 404.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.profiles.DeleteProfile(r.Context(), name); err != nil {
		h.writeServiceError(w, "failed to delete profile", name, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OpenProfile marks a profile as in use.
func (h *Handler) OpenProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.profiles.OpenProfile(r.Context(), name); err != nil {
		h.writeServiceError(w, "failed to open profile", name, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CloseProfile clears the in-use marker.
func (h *Handler) CloseProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.profiles.CloseProfile(r.Context(), name); err != nil {
		h.writeServiceError(w, "failed to close profile", name, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectHandler(selected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := h.profiles.SetSelected(r.Context(), name, selected); err != nil {
			h.writeServiceError(w, "failed to change selection", name, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// writeServiceError maps a ProfileService write error to a status code.
// Remote table failures are 502 so callers can tell them from local faults.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg, name string, err error) {
	switch {
	case errors.Is(err, application.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, application.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid profile name")
	case driven.IsRemoteError(err):
		h.logger.Error(msg, "name", name, "error", err)
		writeError(w, http.StatusBadGateway, "remote table request failed")
	default:
		h.logger.Error(msg, "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Orphans lists local profile directories with no remote record.
func (h *Handler) Orphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.profiles.Orphans(r.Context())
	if err != nil {
		h.logger.Error("failed to list orphans", "error", err)
		writeError(w, http.StatusBadGateway, "could not compare with the remote table")
		return
	}

	writeJSON(w, http.StatusOK, nonNil(orphans))
}

// Events returns recent journal entries, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.profiles.Events(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponses(events))
}

// ProfileEvents returns the journal entries of one profile.
func (h *Handler) ProfileEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	events, err := h.profiles.ProfileEvents(r.Context(), name)
	if err != nil {
		h.logger.Error("failed to list profile events", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toEventResponses(events))
}
