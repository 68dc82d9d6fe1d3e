// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/render"
)

// totpIssuer names the account in authenticator apps.
const totpIssuer = "Storefront"

// profileUploadLimit caps the uploads listed on the profile page.
const profileUploadLimit = 100

// Account groups the profile page and TOTP enrolment handlers.
type Account struct {
	renderer *render.Renderer
	users    UserRepository
	uploads  UploadRepository
	images   ImageStore
}

// NewAccount creates the Account handler group. uploads and images may be
// nil when object storage is not configured.
func NewAccount(renderer *render.Renderer, users UserRepository, uploads UploadRepository, images ImageStore) *Account {
	return &Account{renderer: renderer, users: users, uploads: uploads, images: images}
}

// Profile shows the user's id, email, 2FA status and uploaded images.
func (a *Account) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	user, err := a.users.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		slog.Error("profile user lookup failed", "error", err, "user_id", userID)
		a.renderer.PageStatus(w, r, http.StatusInternalServerError, "error", &render.PageData{Title: "Error"})
		return
	}

	var uploads []models.Upload
	if a.uploads != nil {
		uploads, err = a.uploads.ListByOwner(r.Context(), userID, profileUploadLimit)
		if err != nil {
			slog.Error("list uploads failed", "error", err, "user_id", userID)
		}
	}

	a.renderer.Page(w, r, "profile", &render.PageData{
		Title:   "Profile",
		Section: "profile",
		Data: map[string]any{
			"User":     user,
			"Uploads":  uploads,
			"ThumbURL": a.thumbURL,
		},
	})
}

func (a *Account) thumbURL(u models.Upload) string {
	if a.images == nil {
		return u.URL
	}
	return a.images.ThumbURL(&u)
}

// TwoFASetupPage generates a TOTP secret and displays the QR code.
func (a *Account) TwoFASetupPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa setup failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.Requires2FA() {
		render.SetFlash(w, render.FlashInfo, "Two-factor authentication is already enabled.")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// The secret is stored now but only enforced once a code is confirmed.
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderSetup(w, r, http.StatusOK, key.URL(), key.Secret(), "")
}

// TwoFASetupSubmit confirms the first code and enables TOTP.
func (a *Account) TwoFASetupSubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa setup failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		http.Redirect(w, r, "/profile/2fa", http.StatusSeeOther)
		return
	}

	secret := *user.TOTPSecret
	if !totp.Validate(strings.TrimSpace(r.FormValue("code")), secret) {
		a.renderSetup(w, r, http.StatusUnprocessableEntity, keyURL(user.Email, secret), secret, "Invalid code. Please try again.")
		return
	}

	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		slog.Error("enable totp failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	slog.Info("totp enabled", "user_id", user.ID)
	render.SetFlash(w, render.FlashSuccess, "Two-factor authentication is now enabled.")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// TwoFADisable clears the user's TOTP secret.
func (a *Account) TwoFADisable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if err := a.users.ResetTOTP(r.Context(), userID); err != nil {
		slog.Error("reset totp failed", "error", err)
		render.SetFlash(w, render.FlashError, genericError)
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	slog.Info("totp disabled", "user_id", userID)
	render.SetFlash(w, render.FlashSuccess, "Two-factor authentication has been disabled.")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (a *Account) renderSetup(w http.ResponseWriter, r *http.Request, status int, otpURL, secret, errMsg string) {
	qr, err := qrDataURI(otpURL)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderer.PageStatus(w, r, status, "profile_2fa", &render.PageData{
		Title:   "Enable Two-Factor Authentication",
		Section: "profile",
		Data: map[string]any{
			"QRCode": qr,
			"Secret": secret,
			"Error":  errMsg,
		},
	})
}

// keyURL rebuilds the otpauth:// URL for an existing secret.
func keyURL(email, secret string) string {
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + totpIssuer + ":" + email,
		RawQuery: url.Values{"secret": {secret}, "issuer": {totpIssuer}}.Encode(),
	}
	return u.String()
}

// qrDataURI encodes otpURL as a PNG QR code data URI.
func qrDataURI(otpURL string) (template.URL, error) {
	png, err := qrcode.Encode(otpURL, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
