// Package auth keeps the logged in user in a signed session cookie and
// carries flash messages across redirects.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/training-tracker/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")

	// SessionLifetime is how long a login stays valid.
	SessionLifetime = 14 * 24 * time.Hour
)

// UserVerifier validates that a session's user still exists.
// Set it during app bootstrap via SetUserVerifier. If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, uid uint) bool

var (
	verifier UserVerifier

	secretMu sync.RWMutex
	secret   string
)

// SetUserVerifier configures the global verifier used by RequireAuth.
func SetUserVerifier(v UserVerifier) { verifier = v }

// SetSecret sets the key used to sign session and flash cookies.
func SetSecret(s string) {
	secretMu.Lock()
	secret = s
	secretMu.Unlock()
}

// Secret returns the configured key, SESSION_SECRET or a dev value.
func Secret() string {
	secretMu.RLock()
	s := secret
	secretMu.RUnlock()
	if s != "" {
		return s
	}
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify splits "payload.sig" and checks the signature.
func verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	payload, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(sign(payload))) {
		return "", false
	}
	return payload, true
}

// CreateSession sets a signed cookie with the user id.
func CreateSession(w http.ResponseWriter, userID uint) {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    uidStr + "." + sign(uidStr),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(SessionLifetime),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the user id.
func ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, ok := verify(c.Value)
	if !ok {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok && id != 0
}

// Middleware attaches user id to request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := ParseSession(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	SetFlash(w, FlashInfo, "Please log in to access this page.")
	http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

// ForbiddenMessage is shown when an authorization check fails.
const ForbiddenMessage = "You do not have permission to perform this action."

// Forbidden answers a failed authorization check: 403 JSON for API
// clients, 403 text for htmx swaps, otherwise a flash and a redirect back
// to the referring page.
func Forbidden(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusForbidden, ForbiddenMessage, nil)
		return
	}
	if httpx.IsPartial(r) {
		http.Error(w, ForbiddenMessage, http.StatusForbidden)
		return
	}
	SetFlash(w, FlashDanger, ForbiddenMessage)
	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// RequireAuth redirects to /login if not authenticated (HTML) or returns 401 JSON.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			unauthorized(w, r)
			return
		}
		if verifier != nil && !verifier(r.Context(), uid) {
			// Session refers to a user that no longer exists.
			ClearSession(w)
			unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Subject is the logged in user as seen by authorization checks.
type Subject struct {
	ID    uint
	Email string
}

type subjectCtxKey struct{}

// WithSubject stores the resolved subject in context.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectCtxKey{}, s)
}

// SubjectFromContext returns the subject set by the policy middleware.
func SubjectFromContext(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectCtxKey{}).(Subject)
	return s, ok && s.ID != 0
}
