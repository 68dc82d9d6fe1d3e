package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"storefront/internal/markdown"
)

// Input caps for the AI helper endpoints.
const (
	maxAIRequestBytes = 64 * 1024
	maxImproveRunes   = 10000
)

// AI serves the JSON endpoints behind the form's AI helper buttons.
type AI struct {
	svc SiteService
}

// NewAI creates the AI handler group.
func NewAI(svc SiteService) *AI {
	return &AI{svc: svc}
}

type aboutRequest struct {
	StoreName string `json:"storeName"`
	Tagline   string `json:"tagline"`
}

type improveRequest struct {
	Content string `json:"content"`
}

// About drafts an about paragraph from the store name and tagline.
// Response: {"about": "..."}.
func (a *AI) About(w http.ResponseWriter, r *http.Request) {
	var req aboutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.StoreName = strings.TrimSpace(req.StoreName)
	req.Tagline = strings.TrimSpace(req.Tagline)
	if utf8.RuneCountInString(req.StoreName) < 2 {
		writeJSONError(w, http.StatusUnprocessableEntity, "Enter a store name first.")
		return
	}

	text, err := a.svc.GenerateAbout(r.Context(), req.StoreName, req.Tagline)
	if err != nil {
		a.fail(w, "about", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"about": text})
}

// Improve returns suggestions for the submitted copy, as Markdown and as
// rendered HTML. Response: {"markdown": "...", "html": "..."}.
func (a *AI) Improve(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeJSONError(w, http.StatusUnprocessableEntity, "Write some content to improve first.")
		return
	}
	if utf8.RuneCountInString(req.Content) > maxImproveRunes {
		writeJSONError(w, http.StatusUnprocessableEntity, "Content is too long to review.")
		return
	}

	text, err := a.svc.ImproveContent(r.Context(), req.Content)
	if err != nil {
		a.fail(w, "improve", err)
		return
	}
	rendered, err := markdown.ToHTML(text)
	if err != nil {
		slog.Error("render suggestions failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, genericError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"markdown": text, "html": string(rendered)})
}

func (a *AI) fail(w http.ResponseWriter, kind string, err error) {
	msg := userMessage(err)
	status := http.StatusUnprocessableEntity
	if msg == genericError {
		slog.Error("ai helper failed", "kind", kind, "error", err)
		status = http.StatusBadGateway
	}
	writeJSONError(w, status, msg)
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAIRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}
