// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the HTTP handlers of the storefront UI:
// authentication, the site form and viewer, uploads, AI helpers and the
// public showcase.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storefront/internal/generator"
	"storefront/internal/models"
	"storefront/internal/render"
	"storefront/internal/session"
	"storefront/internal/sites"
)

// genericError is shown for failures whose details stay in the logs.
const genericError = "Something went wrong. Please try again."

// SessionStore manages login sessions. Implemented by *session.Store.
type SessionStore interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// UserRepository reads and writes accounts. Implemented by *store.UserStore.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, email, password, displayName string) (*models.User, error)
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	ResetTOTP(ctx context.Context, userID uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// SiteService is the site lifecycle. Implemented by *sites.Service.
type SiteService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in sites.Input) (*models.Site, error)
	Update(ctx context.Context, callerID uuid.UUID, id string, in sites.Input) (*models.Site, error)
	Delete(ctx context.Context, callerID uuid.UUID, id string) error
	SetVisibility(ctx context.Context, callerID uuid.UUID, id string, public bool) (*models.Site, error)
	Get(ctx context.Context, id string) (*models.Site, error)
	GetForViewer(ctx context.Context, viewerID uuid.UUID, id string) (*models.Site, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Site, error)
	ListPublic(ctx context.Context, limit int) ([]models.Site, error)
	GenerateAbout(ctx context.Context, storeName, tagline string) (string, error)
	ImproveContent(ctx context.Context, content string) (string, error)
}

// ShareSigner issues and checks share-link tokens. Implemented by
// *sharelink.Signer.
type ShareSigner interface {
	Sign(siteID, sharedBy string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// ImageStore stores uploaded images. Implemented by *storage.Images.
type ImageStore interface {
	Store(ctx context.Context, owner uuid.UUID, purpose models.UploadPurpose, data []byte) (*models.Upload, error)
	Remove(ctx context.Context, u *models.Upload)
	ThumbURL(u *models.Upload) string
}

// UploadRepository lists and deletes upload metadata. Implemented by
// *store.UploadStore.
type UploadRepository interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.Upload, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (*models.Upload, error)
}

// writeJSON encodes data as a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encode json response failed", "error", err)
	}
}

// writeJSONError writes {"error": msg}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// userMessage maps a generation error to the text shown to the user.
// Provider details never reach the browser.
func userMessage(err error) string {
	var flagged *generator.FlaggedError
	switch {
	case errors.As(err, &flagged):
		return flagged.Message()
	case errors.Is(err, generator.ErrEmptyOutput):
		return "The AI returned an empty website. Please try again."
	case errors.Is(err, generator.ErrIncompleteOutput):
		return "The AI response was cut off before it finished. Please try again, perhaps with shorter descriptions."
	case errors.Is(err, context.DeadlineExceeded):
		return "Generation took too long. Please try again."
	}
	return genericError
}

// notFound renders the not-found page with status 404.
func notFound(rn *render.Renderer, w http.ResponseWriter, r *http.Request) {
	rn.PageStatus(w, r, http.StatusNotFound, "not_found", &render.PageData{Title: "Not found"})
}
