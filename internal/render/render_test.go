package render

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/session"
)

// helperSession returns a session.Data suitable for rendering templates.
func helperSession() *session.Data {
	return &session.Data{
		UserID:      uuid.New(),
		Email:       "test@storefront.local",
		DisplayName: "Test User",
		TwoFADone:   true,
	}
}

// helperRequestWithContext builds an *http.Request whose context carries a
// session, as LoadSession would.
func helperRequestWithContext(method, target string, sess *session.Data) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := req.Context()
	if sess != nil {
		ctx = context.WithValue(ctx, middleware.SessionKey, sess)
	}
	return req.WithContext(ctx)
}

func helperSite(public bool) models.Site {
	return models.Site{
		ID:          "site-1",
		OwnerID:     uuid.New(),
		StoreName:   "Blue Bakery",
		Tagline:     "Bread worth waking up for",
		About:       "Small batch bread since 2015.",
		HTMLContent: `<html><body><h1 class="x">Blue & Co</h1></body></html>`,
		IsPublic:    public,
		UpdatedAt:   time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	}
}

func mustNew(t *testing.T, devMode bool) *Renderer {
	t.Helper()
	rn, err := New(devMode)
	if err != nil {
		t.Fatalf("New(devMode=%v) returned error: %v", devMode, err)
	}
	return rn
}

// --------------------------------------------------------------------------
// TestNew: every page is parsed, layout files are not pages
// --------------------------------------------------------------------------

func TestNew(t *testing.T) {
	rn := mustNew(t, false)

	for _, name := range []string{
		"home", "dashboard", "site_form", "site_view", "login", "signup",
		"login_2fa", "profile", "profile_2fa", "not_found", "error",
	} {
		if _, ok := rn.templates[name]; !ok {
			t.Errorf("expected template %q to be parsed", name)
		}
	}
	for _, name := range []string{"base", "partials"} {
		if _, ok := rn.templates[name]; ok {
			t.Errorf("%s.html should not be registered as a page", name)
		}
	}
}

// --------------------------------------------------------------------------
// TestDevAndProdAssets: isDev selects the HTMX build
// --------------------------------------------------------------------------

func TestDevAndProdAssets(t *testing.T) {
	tests := []struct {
		devMode bool
		want    string
		notWant string
	}{
		{true, "htmx.org@2.0.4/dist/htmx.js", "htmx.min.js"},
		{false, "htmx.org@2.0.4/dist/htmx.min.js", "dist/htmx.js"},
	}

	for _, tt := range tests {
		rn := mustNew(t, tt.devMode)
		w := httptest.NewRecorder()
		rn.Page(w, helperRequestWithContext(http.MethodGet, "/", nil), "home", &PageData{Title: "Showcase"})

		body := w.Body.String()
		if !strings.Contains(body, tt.want) {
			t.Errorf("devMode=%v: expected %q in output", tt.devMode, tt.want)
		}
		if strings.Contains(body, tt.notWant) {
			t.Errorf("devMode=%v: unexpected %q in output", tt.devMode, tt.notWant)
		}
		if !strings.Contains(body, "/static/css/app.css") {
			t.Errorf("devMode=%v: expected local stylesheet", tt.devMode)
		}
	}
}

// --------------------------------------------------------------------------
// TestPageRendering: full dashboard page with the layout
// --------------------------------------------------------------------------

func TestPageRendering(t *testing.T) {
	rn := mustNew(t, true)
	sess := helperSession()
	req := helperRequestWithContext(http.MethodGet, "/dashboard", sess)
	w := httptest.NewRecorder()

	rn.Page(w, req, "dashboard", &PageData{
		Title:   "Dashboard",
		Section: "dashboard",
		Data:    map[string]any{"Sites": []models.Site{helperSite(true), helperSite(false)}},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<!DOCTYPE html>", "Storefront", "Blue Bakery", "Public", "Private", "Make private", "Make public", `id="site-site-1"`} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard render missing %q", want)
		}
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type: got %q, want %q", ct, "text/html; charset=utf-8")
	}
}

func TestDashboardEmptyState(t *testing.T) {
	rn := mustNew(t, true)
	w := httptest.NewRecorder()
	rn.Page(w, helperRequestWithContext(http.MethodGet, "/dashboard", helperSession()), "dashboard", &PageData{})

	if !strings.Contains(w.Body.String(), "You have not created any websites yet.") {
		t.Error("expected empty state message")
	}
}

// --------------------------------------------------------------------------
// TestHTMXPartialRendering: HTMX requests only render the content block
// --------------------------------------------------------------------------

func TestHTMXPartialRendering(t *testing.T) {
	rn := mustNew(t, true)
	req := helperRequestWithContext(http.MethodGet, "/dashboard", helperSession())
	req.Header.Set("HX-Request", "true")

	w := httptest.NewRecorder()
	rn.Page(w, req, "dashboard", &PageData{
		Data: map[string]any{"Sites": []models.Site{helperSite(false)}},
	})

	body := w.Body.String()
	if strings.Contains(body, "<!DOCTYPE html>") || strings.Contains(body, "<head>") {
		t.Error("HTMX partial should NOT contain the layout")
	}
	if !strings.Contains(body, "Your websites") {
		t.Error("HTMX partial should contain the content block")
	}
}

func TestPartialSiteCard(t *testing.T) {
	rn := mustNew(t, true)
	site := helperSite(true)
	req := helperRequestWithContext(http.MethodPost, "/sites/site-1/visibility", helperSession())

	w := httptest.NewRecorder()
	rn.Partial(w, req, "dashboard", "site_card", &PageData{CSRFToken: "tok", Data: map[string]any{"Site": &site}})

	body := strings.TrimSpace(w.Body.String())
	if !strings.HasPrefix(body, `<article class="card" id="site-site-1">`) {
		t.Errorf("partial should start with the card element, got %q", body[:min(len(body), 80)])
	}
	if !strings.Contains(body, "Make private") {
		t.Error("public site card should offer to make it private")
	}
}

// --------------------------------------------------------------------------
// TestStandaloneTemplates: auth pages and the viewer render standalone
// --------------------------------------------------------------------------

func TestStandaloneTemplates(t *testing.T) {
	rn := mustNew(t, true)
	site := helperSite(true)

	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"login", map[string]any{}, "Sign In"},
		{"signup", map[string]any{}, "Create Account"},
		{"login_2fa", map[string]any{}, "Two-Factor"},
		{"site_view", map[string]any{"Site": &site}, "Blue Bakery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := helperRequestWithContext(http.MethodGet, "/"+tt.name, nil)
			w := httptest.NewRecorder()
			rn.Page(w, req, tt.name, &PageData{Title: tt.name, Data: tt.data})

			if w.Code != http.StatusOK {
				t.Fatalf("template %q: expected 200, got %d", tt.name, w.Code)
			}
			body := w.Body.String()
			if !strings.Contains(body, "<!DOCTYPE html>") {
				t.Errorf("template %q: expected standalone HTML", tt.name)
			}
			if strings.Contains(body, `class="topbar"`) {
				t.Errorf("template %q: should NOT contain the base layout header", tt.name)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("template %q: missing %q", tt.name, tt.want)
			}
		})
	}
}

// --------------------------------------------------------------------------
// TestSiteViewIframe: stored HTML goes verbatim into an escaped srcdoc
// --------------------------------------------------------------------------

func TestSiteViewIframe(t *testing.T) {
	rn := mustNew(t, true)
	site := helperSite(false)
	req := helperRequestWithContext(http.MethodGet, "/sites/site-1", nil)

	w := httptest.NewRecorder()
	rn.Page(w, req, "site_view", &PageData{
		Title: site.Title(),
		Data:  map[string]any{"Site": &site, "IsOwner": true},
	})

	body := w.Body.String()
	wants := []string{
		`sandbox="allow-scripts allow-same-origin"`,
		`srcdoc="&lt;html&gt;&lt;body&gt;&lt;h1 class=&#34;x&#34;&gt;Blue &amp; Co&lt;/h1&gt;&lt;/body&gt;&lt;/html&gt;"`,
		`title="Blue Bakery"`,
		`href="/sites/site-1/download"`,
		`download="blue-bakery.html"`,
		`href="/sites/site-1/edit"`,
	}
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("viewer missing %s", want)
		}
	}
	if strings.Contains(body, `<h1 class="x">`) {
		t.Error("site HTML must not be injected into the viewer page itself")
	}
}

func TestSiteViewSharedHidesOwnerActions(t *testing.T) {
	rn := mustNew(t, true)
	site := helperSite(false)
	w := httptest.NewRecorder()
	rn.Page(w, helperRequestWithContext(http.MethodGet, "/preview/tok", nil), "site_view", &PageData{
		Title: site.Title(),
		Data:  map[string]any{"Site": &site, "Shared": true},
	})

	body := w.Body.String()
	for _, notWant := range []string{"/edit", "/download", "Private"} {
		if strings.Contains(body, notWant) {
			t.Errorf("shared preview should not contain %q", notWant)
		}
	}
}

// --------------------------------------------------------------------------
// TestSiteFormErrors: validation messages render next to their fields
// --------------------------------------------------------------------------

type formStub struct {
	StoreName, Tagline, About, ContactInfo, SocialLinks, StoreHours, HeaderImage string
	Products                                                                     []struct{ Name, Price, Image string }
}

func TestSiteFormErrors(t *testing.T) {
	rn := mustNew(t, true)
	form := formStub{
		StoreName:   "B",
		HeaderImage: "data:image/png;base64,iVBORw0KGgo=",
		Products:    []struct{ Name, Price, Image string }{{Name: "X"}},
	}
	w := httptest.NewRecorder()
	rn.PageStatus(w, helperRequestWithContext(http.MethodPost, "/sites", helperSession()), http.StatusUnprocessableEntity, "site_form", &PageData{
		Title:  "Create a website",
		Errors: map[string]string{"storeName": "Store name must be at least 2 characters.", "products[0].name": "Product name must be at least 2 characters."},
		Data:   map[string]any{"Form": form, "Action": "/sites", "Submit": "Generate website"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Store name must be at least 2 characters.",
		"Product name must be at least 2 characters.",
		`name="products[0].name"`,
		`data-next-index="1"`,
		`src="data:image/png;base64,iVBORw0KGgo="`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("form render missing %q", want)
		}
	}
}

// --------------------------------------------------------------------------
// TestMissingTemplate: Page() with nonexistent template returns 500
// --------------------------------------------------------------------------

func TestMissingTemplate(t *testing.T) {
	rn := mustNew(t, true)
	w := httptest.NewRecorder()
	rn.Page(w, helperRequestWithContext(http.MethodGet, "/x", nil), "nonexistent_template", &PageData{})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not found") {
		t.Error("error response should mention template not found")
	}
}

func TestPageStatus(t *testing.T) {
	rn := mustNew(t, true)
	w := httptest.NewRecorder()
	rn.PageStatus(w, helperRequestWithContext(http.MethodGet, "/sites/nope", nil), http.StatusNotFound, "not_found", &PageData{Title: "Not found"})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "does not exist or is private") {
		t.Error("expected default not-found message")
	}
}

// --------------------------------------------------------------------------
// TestPageDataCSRFInjection: CSRF token is injected from context
// --------------------------------------------------------------------------

func TestPageDataCSRFInjection(t *testing.T) {
	rn := mustNew(t, true)

	var capturedReq *http.Request
	inner := middleware.NewCSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
	}))
	inner.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))
	if capturedReq == nil {
		t.Fatal("CSRF middleware did not call inner handler")
	}

	csrfToken := middleware.CSRFTokenFromCtx(capturedReq.Context())
	if csrfToken == "" {
		t.Fatal("CSRF token not found in context")
	}

	w := httptest.NewRecorder()
	data := &PageData{Title: "Login"}
	rn.Page(w, capturedReq, "login", data)

	if !strings.Contains(w.Body.String(), `name="csrf_token" value="`+csrfToken+`"`) {
		t.Error("rendered login form should contain the CSRF token from context")
	}
	if data.CSRFToken != csrfToken {
		t.Errorf("PageData.CSRFToken: got %q, want %q", data.CSRFToken, csrfToken)
	}
}

// --------------------------------------------------------------------------
// TestSessionInjectionFromContext: session is injected from context
// --------------------------------------------------------------------------

func TestSessionInjectionFromContext(t *testing.T) {
	rn := mustNew(t, true)
	req := helperRequestWithContext(http.MethodGet, "/dashboard", helperSession())
	w := httptest.NewRecorder()

	data := &PageData{Title: "Dashboard", Section: "dashboard"}
	rn.Page(w, req, "dashboard", data)

	if data.Session == nil {
		t.Fatal("expected Session to be injected from context")
	}
	if !strings.Contains(w.Body.String(), "Test User") {
		t.Error("rendered output should contain session DisplayName")
	}
}

func TestProfileUploads(t *testing.T) {
	rn := mustNew(t, true)
	thumb := "users/a/product/x_thumb.jpg"
	user := &models.User{ID: uuid.New(), Email: "a@b.test", DisplayName: "Ann", CreatedAt: time.Now()}
	uploads := []models.Upload{{ID: uuid.New(), Purpose: models.PurposeProduct, SizeBytes: 2048, URL: "https://cdn.test/x.png", ThumbS3Key: &thumb}}

	w := httptest.NewRecorder()
	rn.Page(w, helperRequestWithContext(http.MethodGet, "/profile", helperSession()), "profile", &PageData{
		Data: map[string]any{
			"User":     user,
			"Uploads":  uploads,
			"ThumbURL": func(u models.Upload) string { return strings.TrimSuffix(u.URL, ".png") + "_thumb.jpg" },
		},
	})

	body := w.Body.String()
	for _, want := range []string{user.ID.String(), "a@b.test", "https://cdn.test/x_thumb.jpg", "/uploads/" + uploads[0].ID.String() + "/delete", "2 KB", "Enable 2FA"} {
		if !strings.Contains(body, want) {
			t.Errorf("profile missing %q", want)
		}
	}
}

func TestProfile2FAQRCode(t *testing.T) {
	rn := mustNew(t, true)
	w := httptest.NewRecorder()
	rn.Page(w, helperRequestWithContext(http.MethodGet, "/profile/2fa", helperSession()), "profile_2fa", &PageData{
		Data: map[string]any{"QRCode": template.URL("data:image/png;base64,AAAA"), "Secret": "JBSWY3DP"},
	})

	body := w.Body.String()
	if !strings.Contains(body, `src="data:image/png;base64,AAAA"`) {
		t.Error("QR code data URI should be rendered unfiltered")
	}
	if !strings.Contains(body, "JBSWY3DP") {
		t.Error("manual key should be shown")
	}
}

// --------------------------------------------------------------------------
// TestIsHTMX: detects the HX-Request header
// --------------------------------------------------------------------------

func TestIsHTMX(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected bool
	}{
		{"no header", "", false},
		{"header true", "true", true},
		{"header false", "false", false},
		{"header random", "yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("HX-Request", tt.header)
			}
			if got := IsHTMX(req); got != tt.expected {
				t.Errorf("IsHTMX(): got %v, want %v", got, tt.expected)
			}
		})
	}
}
