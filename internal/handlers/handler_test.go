// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for the handler
// tests: in-memory users, sessions, sites and uploads wired into the real
// renderer and site service.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront/internal/generator"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/render"
	"storefront/internal/session"
	"storefront/internal/sharelink"
	"storefront/internal/sites"
	"storefront/internal/store"
)

// --- users ---

type memUsers struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.User
	passwords map[uuid.UUID]string
	failNext  error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*models.User{}, passwords: map[uuid.UUID]string{}}
}

func (m *memUsers) add(email, password string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: email, DisplayName: "Test User", CreatedAt: time.Now()}
	m.byID[u.ID] = u
	m.passwords[u.ID] = password
	return u
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return nil, err
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *memUsers) Create(ctx context.Context, email, password, displayName string) (*models.User, error) {
	if u, _ := m.FindByEmail(ctx, email); u != nil {
		return nil, store.ErrEmailTaken
	}
	u := m.add(email, password)
	u.DisplayName = displayName
	return u, nil
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].TOTPSecret = &secret
	return nil
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].TOTPEnabled = true
	return nil
}

func (m *memUsers) ResetTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].TOTPSecret = nil
	m.byID[id].TOTPEnabled = false
	return nil
}

func (m *memUsers) CheckPassword(user *models.User, password string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[user.ID] == password
}

// --- sessions ---

type memSessions struct {
	created   []*session.Data
	updated   []*session.Data
	destroyed int
}

func (m *memSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	m.created = append(m.created, data)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "sess-id", Path: "/"})
	return "sess-id", nil
}

func (m *memSessions) Update(_ context.Context, _ *http.Request, data *session.Data) error {
	m.updated = append(m.updated, data)
	return nil
}

func (m *memSessions) Destroy(_ context.Context, _ http.ResponseWriter, _ *http.Request) error {
	m.destroyed++
	return nil
}

// --- sites ---

type memSiteRepo struct {
	mu    sync.Mutex
	seq   int
	sites map[string]*models.Site
}

func newMemSiteRepo() *memSiteRepo {
	return &memSiteRepo{sites: map[string]*models.Site{}}
}

func (m *memSiteRepo) Create(_ context.Context, site *models.Site) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *site
	cp.ID = fmt.Sprintf("site-%d", m.seq)
	cp.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Second)
	cp.UpdatedAt = cp.CreatedAt
	m.sites[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memSiteRepo) FindByID(_ context.Context, id string) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (m *memSiteRepo) list(keep func(*models.Site) bool) []models.Site {
	var out []models.Site
	for _, s := range m.sites {
		if keep(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memSiteRepo) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(s *models.Site) bool { return s.OwnerID == owner }), nil
}

func (m *memSiteRepo) ListPublic(_ context.Context, limit int) ([]models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.list(func(s *models.Site) bool { return s.IsPublic })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSiteRepo) Update(_ context.Context, site *models.Site) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sites[site.ID]
	if !ok {
		return nil, nil
	}
	cp := *site
	cp.IsPublic = old.IsPublic
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = time.Now()
	m.sites[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memSiteRepo) SetVisibility(_ context.Context, id string, public bool) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, nil
	}
	s.IsPublic = public
	out := *s
	return &out, nil
}

func (m *memSiteRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sites[id]
	delete(m.sites, id)
	return ok, nil
}

// stubGenerator returns canned output or err.
type stubGenerator struct {
	html  string
	about string
	tips  string
	err   error
	calls int
}

func (g *stubGenerator) Website(_ context.Context, in generator.Input) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if g.html != "" {
		return g.html, nil
	}
	return "<!DOCTYPE html><html><body><h1>" + in.StoreName + "</h1></body></html>", nil
}

func (g *stubGenerator) AboutText(context.Context, string, string) (string, error) {
	return g.about, g.err
}

func (g *stubGenerator) ImproveContent(context.Context, string) (string, error) {
	return g.tips, g.err
}

// --- uploads ---

type memImages struct {
	stored  []*models.Upload
	removed []*models.Upload
	err     error
}

func (m *memImages) Store(_ context.Context, owner uuid.UUID, purpose models.UploadPurpose, data []byte) (*models.Upload, error) {
	if m.err != nil {
		return nil, m.err
	}
	id := uuid.New()
	u := &models.Upload{
		ID:          id,
		OwnerID:     owner,
		Purpose:     purpose,
		ContentType: "image/png",
		SizeBytes:   int64(len(data)),
		URL:         "https://cdn.test/" + id.String() + ".png",
	}
	m.stored = append(m.stored, u)
	return u, nil
}

func (m *memImages) Remove(_ context.Context, u *models.Upload) {
	m.removed = append(m.removed, u)
}

func (m *memImages) ThumbURL(u *models.Upload) string {
	return u.URL + "?thumb"
}

type memUploads struct {
	items []models.Upload
}

func (m *memUploads) ListByOwner(_ context.Context, owner uuid.UUID, limit int) ([]models.Upload, error) {
	var out []models.Upload
	for _, u := range m.items {
		if u.OwnerID == owner && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUploads) Delete(_ context.Context, id, owner uuid.UUID) (*models.Upload, error) {
	for i, u := range m.items {
		if u.ID == id && u.OwnerID == owner {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return &u, nil
		}
	}
	return nil, nil
}

// --- environment ---

const testShareSecret = "0123456789abcdef0123456789abcdef"

// testEnv holds all dependencies for handler tests.
type testEnv struct {
	Renderer *render.Renderer
	Users    *memUsers
	Sessions *memSessions
	Repo     *memSiteRepo
	Gen      *stubGenerator
	Service  *sites.Service
	Signer   *sharelink.Signer
	Images   *memImages
	Uploads  *memUploads

	Auth    *Auth
	Account *Account
	Sites   *Sites
	AI      *AI
	Files   *Uploads
	Public  *Public
}

// newTestEnv creates a complete in-memory test environment.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	renderer, err := render.New(true)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	signer, err := sharelink.NewSigner(testShareSecret, time.Hour)
	if err != nil {
		t.Fatalf("sharelink.NewSigner: %v", err)
	}

	env := &testEnv{
		Renderer: renderer,
		Users:    newMemUsers(),
		Sessions: &memSessions{},
		Repo:     newMemSiteRepo(),
		Gen:      &stubGenerator{about: "Fresh bread every morning.", tips: "## Tips\n\n- Be concrete"},
		Signer:   signer,
		Images:   &memImages{},
		Uploads:  &memUploads{},
	}
	env.Service = sites.New(env.Repo, env.Gen)

	env.Auth = NewAuth(renderer, env.Sessions, env.Users)
	env.Account = NewAccount(renderer, env.Users, env.Uploads, env.Images)
	env.Sites = NewSites(renderer, env.Service, signer, "https://shop.test")
	env.AI = NewAI(env.Service)
	env.Files = NewUploads(env.Images, env.Uploads)
	env.Public = NewPublic(renderer, env.Service, nil)
	return env
}

// seedSite stores a generated site for owner directly in the repository.
func (e *testEnv) seedSite(t *testing.T, owner uuid.UUID, name string, public bool) *models.Site {
	t.Helper()
	site, err := e.Repo.Create(context.Background(), &models.Site{
		OwnerID:     owner,
		StoreName:   name,
		About:       "A lovely little shop.",
		Products:    []models.Product{{Name: "Bread", Price: "$4"}},
		ContactInfo: "1 Main St, Anytown",
		HTMLContent: "<html><body><h1>" + name + "</h1></body></html>",
		IsPublic:    public,
	})
	if err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return site
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		TwoFADone:   twoFADone,
	}
}

// asUser attaches a completed session for userID to r.
func asUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(ctxWithSession(r.Context(), testSession(userID, "owner@test.local", true)))
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// flashFrom returns the flash cookie set on a response, if any.
func flashFrom(t *testing.T, resp *http.Response) []render.Flash {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name != render.FlashCookieName {
			continue
		}
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		return render.PopFlashes(noopWriter{}, req)
	}
	return nil
}

// noopWriter discards the cookie clearing done by PopFlashes.
type noopWriter struct{}

func (noopWriter) Header() http.Header { return http.Header{} }
func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
func (noopWriter) WriteHeader(int) {}
