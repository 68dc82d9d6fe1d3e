package render

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// FlashCookieName holds pending notifications between a redirect and the
// next rendered page.
const FlashCookieName = "sf_flash"

// Flash types.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash represents a one-time notification message displayed to the user.
type Flash struct {
	Type    string `json:"t"`
	Message string `json:"m"`
}

// SetFlash queues a notification for the next rendered page. Calling it
// again in the same response replaces the earlier message.
func SetFlash(w http.ResponseWriter, typ, message string) {
	raw, err := json.Marshal([]Flash{{Type: typ, Message: message}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// PopFlashes returns the queued notifications and clears the cookie.
// A malformed cookie is dropped.
func PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
