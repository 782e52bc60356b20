package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/manifest-placeholders/internal/manifest"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const redactedValue = "<redacted>"

// Handler serves a resolved placeholder set over HTTP.
type Handler struct {
	placeholders manifest.Placeholders
	reveal       bool

	clock      func() time.Time
	resolvedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithReveal controls whether resolved values are returned in clear text.
// Sentinel values are always shown.
func WithReveal(reveal bool) HandlerOption {
	return func(h *Handler) {
		h.reveal = reveal
	}
}

// NewHandler constructs a Handler for the provided placeholder set.
func NewHandler(placeholders manifest.Placeholders, opts ...HandlerOption) *Handler {
	h := &Handler{
		placeholders: placeholders,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.resolvedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		Missing:   len(h.placeholders.Missing()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListPlaceholders(w http.ResponseWriter, r *http.Request) {
	_ = r
	entries := h.placeholders.Entries()
	resp := placeholdersResponse{
		Placeholders: make([]placeholderResponse, 0, len(entries)),
		Missing:      h.placeholders.Missing(),
		ResolvedAt:   h.resolvedAt,
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}
	for _, e := range entries {
		resp.Placeholders = append(resp.Placeholders, h.toResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetPlaceholder(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	entry, ok := h.placeholders.Entry(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown placeholder", "no placeholder named "+name)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(entry))
}

func (h *Handler) toResponse(e manifest.Entry) placeholderResponse {
	resp := placeholderResponse{
		Name:         e.Name,
		Key:          e.Key,
		Value:        e.Value,
		UsedSentinel: e.UsedSentinel,
	}
	if !h.reveal && !e.UsedSentinel {
		resp.Value = redactedValue
		resp.Redacted = true
	}
	return resp
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type placeholderResponse struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	Value        string `json:"value"`
	UsedSentinel bool   `json:"usedSentinel"`
	Redacted     bool   `json:"redacted,omitempty"`
}

type placeholdersResponse struct {
	Placeholders []placeholderResponse `json:"placeholders"`
	Missing      []string              `json:"missing"`
	ResolvedAt   time.Time             `json:"resolvedAt"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Missing   int       `json:"missing"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
