package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ProfileResponse is the JSON representation of a profile record.
type ProfileResponse struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields"`
}

// SavedProfileResponse is returned after a create-or-update.
type SavedProfileResponse struct {
	Name string `json:"name"`
}

// EventResponse is the JSON representation of a journal entry.
type EventResponse struct {
	ID        int64  `json:"id"`
	Profile   string `json:"profile"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toProfileResponse converts a row snapshot to its JSON representation.
func toProfileResponse(row *model.Row) ProfileResponse {
	return ProfileResponse{
		ID:     row.ID,
		Name:   row.Name(),
		Fields: row.Fields.Clone(),
	}
}

// toEventResponses converts journal entries, preserving order.
func toEventResponses(events []model.Event) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, EventResponse{
			ID:        e.ID,
			Profile:   e.ProfileName,
			Action:    string(e.Action),
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return resp
}

// nonNil turns a nil name list into an empty JSON array.
func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
