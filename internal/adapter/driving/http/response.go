package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/gitwatch/internal/domain/model"
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

// TrackRepoRequest is the JSON body for the track repository endpoint.
type TrackRepoRequest struct {
	Owner     string `json:"owner" validate:"required"`
	Repo      string `json:"repo" validate:"required"`
	ChannelID string `json:"channel_id" validate:"required"`
}

// TrackRepoResponse confirms a tracked repository.
type TrackRepoResponse struct {
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	ChannelID string `json:"channel_id"`
}

// TrackOrgRequest is the JSON body for the track organization endpoint.
type TrackOrgRequest struct {
	Org       string `json:"org" validate:"required"`
	ChannelID string `json:"channel_id" validate:"required"`
}

// TrackOrgResponse confirms a tracked organization and lists the repositories
// it resolved to.
type TrackOrgResponse struct {
	Org       string   `json:"org"`
	ChannelID string   `json:"channel_id"`
	Repos     []string `json:"repos"`
}

// EntryResponse is the JSON representation of one tracked entry.
type EntryResponse struct {
	Owner     string   `json:"owner"`
	Repo      string   `json:"repo,omitempty"`
	ChannelID string   `json:"channel_id"`
	IsOrg     bool     `json:"is_org"`
	OrgRepos  []string `json:"org_repos,omitempty"`
}

// PollResponse reports the outcome of a manual poll.
type PollResponse struct {
	Events int `json:"events"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// toEntryResponse converts a tracking entry to its JSON representation.
func toEntryResponse(entry model.TrackingEntry) EntryResponse {
	return EntryResponse{
		Owner:     entry.Owner,
		Repo:      entry.Repo,
		ChannelID: entry.ChannelID,
		IsOrg:     entry.IsOrg,
		OrgRepos:  entry.OrgRepos,
	}
}
