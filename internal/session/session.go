// Package session keeps login sessions in Valkey. The browser holds only
// an opaque random id; the payload lives under a namespaced key whose
// idle TTL slides forward on every read.
package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the session cookie sent to the browser.
	CookieName = "sf_session"

	// IdleTimeout is how long an unused session survives in Valkey.
	IdleTimeout = 24 * time.Hour

	// MaxLifetime caps a session regardless of activity.
	MaxLifetime = 7 * 24 * time.Hour

	keyPrefix = "storefront:session:"
)

// ErrNoSession is returned by Update when the request carries no session cookie.
var ErrNoSession = errors.New("session: no cookie")

// Data is the session payload. TwoFADone is false between a password
// login and the TOTP check for users with 2FA.
type Data struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	TwoFADone   bool      `json:"two_fa_done"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store manages sessions in Valkey.
type Store struct {
	client *redis.Client
	secure bool
	now    func() time.Time
}

// NewStore creates a session store. secure marks the cookie HTTPS-only.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{client: client, secure: secure, now: time.Now}
}

// Create stores a new session and sets its cookie. It returns the id.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id := rand.Text()
	data.CreatedAt = s.now()

	if err := s.save(ctx, id, data); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	http.SetCookie(w, s.cookie(id, int(MaxLifetime.Seconds())))
	return id, nil
}

// Get loads the session named by the request cookie and extends its idle
// TTL. It returns (nil, nil) when there is no cookie, the session has
// expired, or it has outlived MaxLifetime.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	id, ok := cookieID(r)
	if !ok {
		return nil, nil
	}

	payload, err := s.client.GetEx(ctx, sessionKey(id), IdleTimeout).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.now().Sub(data.CreatedAt) > MaxLifetime {
		s.client.Del(ctx, sessionKey(id))
		return nil, nil
	}
	return &data, nil
}

// Update replaces the payload of the current session, keeping its id,
// cookie and creation time. Used when 2FA completes.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	id, ok := cookieID(r)
	if !ok {
		return ErrNoSession
	}
	if err := s.save(ctx, id, data); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Destroy deletes the session and expires its cookie. Requests without a
// cookie are a no-op.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, ok := cookieID(r)
	if !ok {
		return nil
	}
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	http.SetCookie(w, s.cookie("", -1))
	return nil
}

func (s *Store) save(ctx context.Context, id string, data *Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(id), payload, IdleTimeout).Err()
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func cookieID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func sessionKey(id string) string { return keyPrefix + id }
