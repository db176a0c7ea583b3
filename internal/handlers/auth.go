package handlers

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/internal/directory"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
)

// loginFailed is shown for any failure that is not a known directory answer.
const loginFailed = "Login failed. Please try again."

// Directory is the login backend.
type Directory interface {
	directory.Authenticator
	QualifyUsername(username string) string
}

// UserStore records logged in users.
type UserStore interface {
	Upsert(ctx context.Context, u models.User) (*models.User, error)
}

type AuthHandler struct {
	dir   Directory
	users UserStore
	log   logging.Logger
}

func NewAuthHandler(dir Directory, users UserStore, log logging.Logger) *AuthHandler {
	return &AuthHandler{dir: dir, users: users, log: log}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	next := r.URL.Query().Get("next")
	if r.Method == http.MethodGet {
		render(w, r, h.log, "login.html", map[string]any{"Next": next})
		return
	}

	username := h.dir.QualifyUsername(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		renderStatus(w, r, h.log, http.StatusUnprocessableEntity, "login.html", map[string]any{
			"Next":     next,
			"Username": username,
			"Error":    "Username and password are required.",
		})
		return
	}

	profile, err := h.dir.Authenticate(r.Context(), username, password)
	if err != nil {
		h.log.Warn("failed login attempt", map[string]interface{}{
			"user":       username,
			"ip_address": r.RemoteAddr,
			"user_agent": r.UserAgent(),
			"cause":      err.Error(),
		})
		renderStatus(w, r, h.log, http.StatusUnauthorized, "login.html", map[string]any{
			"Next":     next,
			"Username": username,
			"Error":    loginMessage(err),
		})
		return
	}

	u, err := h.users.Upsert(r.Context(), models.User{
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Department:  profile.Department,
	})
	if err != nil {
		h.log.Error("record login", err, map[string]interface{}{"user": username})
		renderStatus(w, r, h.log, http.StatusInternalServerError, "login.html", map[string]any{"Next": next, "Username": username, "Error": loginFailed})
		return
	}

	auth.CreateSession(w, u.ID)
	h.log.Info("user login successful", map[string]interface{}{
		"user":       username,
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
	auth.SetFlash(w, auth.FlashSuccess, "Welcome, "+u.FullName()+"!")
	http.Redirect(w, r, safeNext(next, "/"), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	auth.SetFlash(w, auth.FlashInfo, "You have been logged out.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// loginMessage maps a directory error to the message shown on the page.
func loginMessage(err error) string {
	for _, known := range []error{
		directory.ErrInvalidCredentials,
		directory.ErrInvalidPassword,
		directory.ErrDirectoryUnreachable,
		directory.ErrUserNotFound,
		directory.ErrNotInGroup,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return loginFailed
}
