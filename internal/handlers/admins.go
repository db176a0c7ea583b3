package handlers

import (
	"net/http"
	"strings"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/services"
)

// RoleCache forgets cached roles after the admin list changes.
type RoleCache interface {
	InvalidateAll()
}

type AdminHandler struct {
	admins *services.AdminService
	roles  RoleCache
	log    logging.Logger
}

func NewAdminHandler(admins *services.AdminService, roles RoleCache, log logging.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, roles: roles, log: log}
}

// Manage lists the admins and handles the add and remove buttons.
func (h *AdminHandler) Manage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method == http.MethodPost {
		switch {
		case r.FormValue("add_admin") != "":
			added, err := h.admins.Add(ctx, r.FormValue("email"), r.FormValue("first_name"), r.FormValue("last_name"))
			switch {
			case err != nil:
				h.log.Error("add admin", err, logPerson(r))
				auth.SetFlash(w, auth.FlashDanger, "Could not add admin.")
			case !added:
				auth.SetFlash(w, auth.FlashWarning, "Admin already exists.")
			default:
				h.roles.InvalidateAll()
				h.log.Info("admin added", logPerson(r), map[string]interface{}{"email": strings.ToLower(r.FormValue("email"))})
				auth.SetFlash(w, auth.FlashSuccess, "Admin added.")
			}
		case r.FormValue("remove_admin") != "":
			email := r.FormValue("remove_admin")
			removed, err := h.admins.Remove(ctx, email)
			switch {
			case err != nil:
				h.log.Error("remove admin", err, logPerson(r))
				auth.SetFlash(w, auth.FlashDanger, "Could not remove admin.")
			case removed:
				h.roles.InvalidateAll()
				h.log.Warn("admin removed", logPerson(r), map[string]interface{}{"email": email})
				auth.SetFlash(w, auth.FlashSuccess, "Admin removed.")
			}
		}
		http.Redirect(w, r, "/manage_admins", http.StatusSeeOther)
		return
	}

	admins, err := h.admins.List(ctx)
	if err != nil {
		serverError(w, r, h.log, "Failed to load admins.", err, "/")
		return
	}
	render(w, r, h.log, "manage_admins.html", map[string]any{"Admins": admins})
}

// UpdateEmailPreference toggles receive_emails and answers with the
// status fragment swapped in by htmx.
func (h *AdminHandler) UpdateEmailPreference(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		http.Error(w, "Error: Missing email", http.StatusBadRequest)
		return
	}
	receive := r.FormValue("receive_emails") == "on"
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	ok, err := h.admins.SetReceiveEmails(r.Context(), email, receive)
	if err != nil || !ok {
		if err != nil {
			h.log.Error("update admin email preference", err, logPerson(r))
		}
		_, _ = w.Write([]byte(`<span class="text-danger small">Error updating</span>`))
		return
	}
	h.log.Info("admin email preference updated", logPerson(r), map[string]interface{}{
		"email":   email,
		"receive": receive,
	})
	if receive {
		_, _ = w.Write([]byte(`<span class="text-success small">✓ Enabled</span>`))
		return
	}
	_, _ = w.Write([]byte(`<span class="text-danger small">✗ Disabled</span>`))
}
