package auth

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const flashCookieName = "flash"

// Flash categories, matching the alert styles of the templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

func readFlashes(r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	payload, ok := verify(c.Value)
	if !ok {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	var out []Flash
	if json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

func writeFlashes(w http.ResponseWriter, flashes []Flash) {
	raw, _ := json.Marshal(flashes)
	payload := base64.RawURLEncoding.EncodeToString(raw)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    payload + "." + sign(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetFlash queues a message for the next page. Messages already set on w
// during this response are kept.
func SetFlash(w http.ResponseWriter, category, message string) {
	var pending []Flash
	for _, v := range w.Header().Values("Set-Cookie") {
		if c, err := http.ParseSetCookie(v); err == nil && c.Name == flashCookieName {
			req := &http.Request{Header: http.Header{"Cookie": {c.Name + "=" + c.Value}}}
			pending = readFlashes(req)
		}
	}
	writeFlashes(w, append(pending, Flash{Category: category, Message: message}))
}

// PopFlashes returns the queued messages and clears the cookie.
func PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := readFlashes(r)
	if flashes != nil {
		http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
	}
	return flashes
}
