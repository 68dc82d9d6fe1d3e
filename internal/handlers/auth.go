package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pquerna/otp/totp"

	"storefront/internal/middleware"
	"storefront/internal/render"
	"storefront/internal/session"
	"storefront/internal/store"
)

// Auth groups the sign-up, login, TOTP verification and logout handlers.
type Auth struct {
	renderer *render.Renderer
	sessions SessionStore
	users    UserRepository
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions SessionStore, users UserRepository) *Auth {
	return &Auth{
		renderer: renderer,
		sessions: sessions,
		users:    users,
	}
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	a.renderer.Page(w, r, "login", &render.PageData{
		Title: "Sign In",
		Data:  map[string]any{"Next": safeNext(r.URL.Query().Get("next"))},
	})
}

// LoginSubmit checks the credentials and starts a session. Users with
// TOTP enabled get a half-authenticated session and go to /login/2fa.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := normalizeEmail(r.FormValue("email"))
	password := r.FormValue("password")
	next := safeNext(r.FormValue("next"))

	fail := func(status int, msg string) {
		a.renderer.PageStatus(w, r, status, "login", &render.PageData{
			Title: "Sign In",
			Data:  map[string]any{"Error": msg, "Email": email, "Next": next},
		})
	}

	user, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		fail(http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user == nil || !a.users.CheckPassword(user, password) {
		slog.Info("login failed", "email", email)
		fail(http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	needs2FA := user.Requires2FA()
	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.Name(),
		TwoFADone:   !needs2FA,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		fail(http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	if needs2FA {
		http.Redirect(w, r, middleware.TwoFAPath, http.StatusSeeOther)
		return
	}
	slog.Info("user logged in", "user_id", user.ID)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// SignupPage renders the registration form.
func (a *Auth) SignupPage(w http.ResponseWriter, r *http.Request) {
	a.renderer.Page(w, r, "signup", &render.PageData{Title: "Create Account"})
}

// SignupSubmit creates an account and signs the new user in.
func (a *Auth) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	form := signupForm{
		Email:       normalizeEmail(r.FormValue("email")),
		Password:    r.FormValue("password"),
		DisplayName: strings.TrimSpace(r.FormValue("displayName")),
	}

	rerender := func(status int, errs map[string]string) {
		a.renderer.PageStatus(w, r, status, "signup", &render.PageData{
			Title:  "Create Account",
			Errors: errs,
			Data:   map[string]any{"Email": form.Email, "DisplayName": form.DisplayName},
		})
	}

	if errs := form.validate(); errs != nil {
		rerender(http.StatusUnprocessableEntity, errs)
		return
	}

	user, err := a.users.Create(r.Context(), form.Email, form.Password, form.DisplayName)
	if errors.Is(err, store.ErrEmailTaken) {
		rerender(http.StatusConflict, map[string]string{"email": "An account with this email already exists."})
		return
	}
	if err != nil {
		slog.Error("signup failed", "error", err)
		rerender(http.StatusInternalServerError, map[string]string{"email": genericError})
		return
	}

	if _, err := a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.Name(),
		TwoFADone:   true,
	}); err != nil {
		slog.Error("session create failed", "error", err)
		render.SetFlash(w, render.FlashInfo, "Account created. Please sign in.")
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}

	slog.Info("user signed up", "user_id", user.ID)
	render.SetFlash(w, render.FlashSuccess, "Welcome! Create your first website.")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// TwoFAPage renders the TOTP code form for a half-authenticated session.
func (a *Auth) TwoFAPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}
	if sess.TwoFADone {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "login_2fa", &render.PageData{Title: "Two-Factor Verification"})
}

// TwoFASubmit validates the TOTP code and completes authentication.
func (a *Auth) TwoFASubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "error", err, "user_id", sess.UserID)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// A user who disabled 2FA since the password step passes straight through.
	if user.Requires2FA() && !totp.Validate(strings.TrimSpace(r.FormValue("code")), *user.TOTPSecret) {
		slog.Info("invalid totp code", "user_id", user.ID)
		a.renderer.PageStatus(w, r, http.StatusUnauthorized, "login_2fa", &render.PageData{
			Title: "Two-Factor Verification",
			Data:  map[string]any{"Error": "Invalid code. Please try again."},
		})
		return
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session and returns to the showcase.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	render.SetFlash(w, render.FlashInfo, "You have been signed out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
