// Package handlers holds the HTTP handlers of the training tracker. Each
// handler answers HTML by default and JSON when the client asks for it.
package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/gate"
	"github.com/diewo77/training-tracker/httpx"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
	"github.com/diewo77/training-tracker/view"
)

// FormAuthorizer checks what the current user may do with a form.
type FormAuthorizer interface {
	AuthorizeForm(ctx context.Context, action gate.Action, f *models.TrainingForm) error
	IsAdmin(ctx context.Context) bool
}

// Notifier is told about every new submission.
type Notifier interface {
	Notify(ctx context.Context, form *models.TrainingForm)
}

func currentEmail(r *http.Request) string {
	s, _ := auth.SubjectFromContext(r.Context())
	return s.Email
}

func logPerson(r *http.Request) logging.Person {
	s, _ := auth.SubjectFromContext(r.Context())
	return logging.Person{ID: strconv.FormatUint(uint64(s.ID), 10), Email: s.Email}
}

// pathID reads a positive numeric path value.
func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// safeNext returns next when it is a local path, fallback otherwise.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}

// render writes a page and turns a template failure into a 500.
func render(w http.ResponseWriter, r *http.Request, log logging.Logger, name string, data map[string]any) {
	if err := view.Render(w, r, name, data); err != nil {
		log.Error("render "+name, err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// statusWriter sends status with the first body write, after the view
// has set its headers and cookies.
type statusWriter struct {
	http.ResponseWriter
	status int
	sent   bool
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if !s.sent {
		s.sent = true
		s.ResponseWriter.WriteHeader(s.status)
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusWriter) WriteHeader(code int) {
	s.sent = true
	s.ResponseWriter.WriteHeader(code)
}

func renderStatus(w http.ResponseWriter, r *http.Request, log logging.Logger, status int, name string, data map[string]any) {
	render(&statusWriter{ResponseWriter: w, status: status}, r, log, name, data)
}

func renderPartial(w http.ResponseWriter, r *http.Request, log logging.Logger, page, block string, data map[string]any) {
	if err := view.RenderPartial(w, r, page, block, data); err != nil {
		log.Error("render "+block, err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// serverError logs err and answers 500, as JSON or as a flash and a
// redirect to fallback.
func serverError(w http.ResponseWriter, r *http.Request, log logging.Logger, msg string, err error, fallback string) {
	log.Error(msg, err, logPerson(r))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusInternalServerError, msg, nil)
		return
	}
	auth.SetFlash(w, auth.FlashDanger, msg)
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}

// notFound answers a missing form.
func notFound(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusNotFound, "Training form not found", nil)
		return
	}
	auth.SetFlash(w, auth.FlashDanger, "Training form not found")
	http.Redirect(w, r, "/list", http.StatusSeeOther)
}
