package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/gate"
	"github.com/diewo77/training-tracker/httpx"
	"github.com/diewo77/training-tracker/internal/intake"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/models"
	"github.com/diewo77/training-tracker/internal/services"
	"github.com/diewo77/training-tracker/internal/storage"
	"github.com/diewo77/training-tracker/validation"
)

// DefaultMaxContentLength caps a request body, uploads included.
const DefaultMaxContentLength = 32 << 20

type FormHandler struct {
	forms      *services.FormService
	store      storage.Store
	notifier   Notifier
	authz      FormAuthorizer
	maxContent int64
	log        logging.Logger
}

func NewFormHandler(forms *services.FormService, store storage.Store, notifier Notifier, authz FormAuthorizer, maxContent int64, log logging.Logger) *FormHandler {
	if maxContent <= 0 {
		maxContent = DefaultMaxContentLength
	}
	return &FormHandler{
		forms:      forms,
		store:      store,
		notifier:   notifier,
		authz:      authz,
		maxContent: maxContent,
		log:        log,
	}
}

func (h *FormHandler) Home(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.log, "home.html", nil)
}

func (h *FormHandler) Success(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.log, "success.html", nil)
}

func (h *FormHandler) New(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.log, "form.html", h.formData(&intake.FormInput{}, nil, nil))
}

// formData is the data of the new and edit pages. f is nil on /new.
func (h *FormHandler) formData(in *intake.FormInput, f *models.TrainingForm, errs validation.Violations) map[string]any {
	data := map[string]any{
		"Input":         in,
		"Errors":        errs,
		"IdaClasses":    models.IdaClasses,
		"TrainingTypes": []string{models.TrainingInternal, models.TrainingExternal},
		"LocationTypes": []string{models.LocationOnsite, models.LocationOffsite, models.LocationVirtual},
		"Action":        "/submit",
	}
	if f != nil {
		data["Form"] = f
		data["IsEdit"] = true
		data["Action"] = "/edit/" + strconv.FormatUint(uint64(f.ID), 10)
	}
	for key, rows := range map[string]any{
		"TraineesJSON":         in.Trainees,
		"TravelExpensesJSON":   in.TravelExpenses,
		"MaterialExpensesJSON": in.MaterialExpenses,
	} {
		b, _ := json.Marshal(rows)
		data[key] = string(b)
	}
	return data
}

// decode reads the submission, bounded by the configured content length.
func (h *FormHandler) decode(w http.ResponseWriter, r *http.Request, fallback string) (*intake.Decoded, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxContent)
	d, err := intake.Decode(r, h.maxContent)
	if err == nil {
		return d, true
	}
	var tooLarge *http.MaxBytesError
	status, msg := http.StatusBadRequest, "The submitted form could not be read."
	if errors.As(err, &tooLarge) {
		status, msg = http.StatusRequestEntityTooLarge, "The upload is too large."
	}
	h.log.Warn("decode submission", err, logPerson(r))
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, status, msg, nil)
		return nil, false
	}
	auth.SetFlash(w, auth.FlashDanger, msg)
	http.Redirect(w, r, fallback, http.StatusSeeOther)
	return nil, false
}

// invalid answers a submission that failed validation. Nothing is written.
func (h *FormHandler) invalid(w http.ResponseWriter, r *http.Request, in *intake.FormInput, f *models.TrainingForm, errs validation.Violations) {
	if httpx.WantsJSON(r) {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "Validation failed", errs)
		return
	}
	renderStatus(w, r, h.log, http.StatusUnprocessableEntity, "form.html", h.formData(in, f, errs))
}

func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, ok := h.decode(w, r, "/new")
	if !ok {
		return
	}
	in := d.Input
	if errs := in.Validate(); !errs.Empty() {
		h.invalid(w, r, in, nil, errs)
		return
	}

	rec := in.ToRecord(currentEmail(r))
	id, err := h.forms.Insert(ctx, rec)
	if err != nil {
		serverError(w, r, h.log, "Failed to save the training form.", err, "/new")
		return
	}
	warnings := h.saveChildren(ctx, id, in, d.Warnings, false)
	warnings = append(warnings, h.saveUploads(ctx, id, r)...)

	rec.Trainees = in.TraineeRows()
	h.notify(ctx, rec)
	h.log.Info("training form submitted", logPerson(r), map[string]interface{}{
		"form_id":       id,
		"training_type": rec.TrainingType,
	})

	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"id": id, "warnings": warningMessages(warnings, false)})
		return
	}
	auth.SetFlash(w, auth.FlashSuccess, "Training form submitted successfully!")
	for _, msg := range warningMessages(warnings, false) {
		auth.SetFlash(w, auth.FlashWarning, msg)
	}
	http.Redirect(w, r, "/success", http.StatusSeeOther)
}

// notify mails the reviewers without holding up the response.
func (h *FormHandler) notify(ctx context.Context, f *models.TrainingForm) {
	if h.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go h.notifier.Notify(ctx, f)
}

// saveChildren writes the child collections of form id and returns the
// labels of those that failed. Collections listed in unreadable could not
// be decoded and are left untouched. With replace, a nil collection was
// not sent and is kept as stored.
func (h *FormHandler) saveChildren(ctx context.Context, id uint, in *intake.FormInput, unreadable []string, replace bool) []string {
	failed := append([]string(nil), unreadable...)
	skip := func(label string) bool {
		for _, u := range unreadable {
			if u == label {
				return true
			}
		}
		return false
	}
	fail := func(label string, err error) {
		h.log.Error("save "+label, err, map[string]interface{}{"form_id": id})
		failed = append(failed, label)
	}

	if !skip(intake.ChildTrainees) && (!replace || in.Trainees != nil) {
		write := h.forms.InsertTrainees
		if replace {
			write = h.forms.ReplaceTrainees
		}
		if err := write(ctx, id, in.TraineeRows()); err != nil {
			fail(intake.ChildTrainees, err)
		}
	}
	if !skip(intake.ChildTravelExpenses) && (!replace || in.TravelExpenses != nil) {
		write := h.forms.InsertTravelExpenses
		if replace {
			write = h.forms.ReplaceTravelExpenses
		}
		rows, err := in.TravelRows()
		if err == nil {
			err = write(ctx, id, rows)
		}
		if err != nil {
			fail(intake.ChildTravelExpenses, err)
		}
	}
	if !skip(intake.ChildMaterialExpenses) && (!replace || in.MaterialExpenses != nil) {
		write := h.forms.InsertMaterialExpenses
		if replace {
			write = h.forms.ReplaceMaterialExpenses
		}
		rows, err := in.MaterialRows()
		if err == nil {
			err = write(ctx, id, rows)
		}
		if err != nil {
			fail(intake.ChildMaterialExpenses, err)
		}
	}
	return failed
}

// saveUploads stores the uploaded attachments of form id with their
// descriptions and returns a label per failed file.
func (h *FormHandler) saveUploads(ctx context.Context, id uint, r *http.Request) []string {
	if r.MultipartForm == nil {
		return nil
	}
	descriptions := r.MultipartForm.Value["attachment_descriptions[]"]
	var (
		rows   []models.Attachment
		failed []string
	)
	for i, fh := range r.MultipartForm.File["attachments"] {
		if fh == nil || strings.TrimSpace(fh.Filename) == "" {
			continue
		}
		name, err := storage.SaveUpload(ctx, h.store, id, fh, h.maxContent)
		if err != nil {
			h.log.Error("save attachment", err, map[string]interface{}{"form_id": id, "filename": fh.Filename})
			failed = append(failed, "attachment "+fh.Filename)
			continue
		}
		a := models.Attachment{Filename: name}
		if i < len(descriptions) {
			a.Description = strings.TrimSpace(descriptions[i])
		}
		rows = append(rows, a)
	}
	if err := h.forms.AddAttachments(ctx, id, rows); err != nil {
		h.log.Error("save attachment metadata", err, map[string]interface{}{"form_id": id})
		failed = append(failed, "attachments")
	}
	return failed
}

func warningMessages(labels []string, updated bool) []string {
	msgs := make([]string, 0, len(labels))
	for _, l := range labels {
		msgs = append(msgs, intake.WarningMessage(l, updated))
	}
	return msgs
}

// load fetches form {id} and checks action on it. It answers the request
// itself and returns nil when the form is missing or the check fails.
func (h *FormHandler) load(w http.ResponseWriter, r *http.Request, action gate.Action, includeDeleted bool) *models.TrainingForm {
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, r)
		return nil
	}
	f, err := h.forms.Get(r.Context(), id, includeDeleted)
	if errors.Is(err, services.ErrFormNotFound) {
		notFound(w, r)
		return nil
	}
	if err != nil {
		serverError(w, r, h.log, "Failed to load the training form.", err, "/list")
		return nil
	}
	if err := h.authz.AuthorizeForm(r.Context(), action, f); err != nil {
		h.log.Warn("form access denied", logPerson(r), map[string]interface{}{"form_id": id, "action": string(action)})
		auth.Forbidden(w, r)
		return nil
	}
	return f
}

func (h *FormHandler) View(w http.ResponseWriter, r *http.Request) {
	f := h.load(w, r, gate.ActionView, true)
	if f == nil {
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, f)
		return
	}
	render(w, r, h.log, "view.html", map[string]any{
		"Form":    f,
		"CanEdit": h.authz.AuthorizeForm(r.Context(), gate.ActionUpdate, f) == nil,
	})
}

func (h *FormHandler) Edit(w http.ResponseWriter, r *http.Request) {
	f := h.load(w, r, gate.ActionUpdate, false)
	if f == nil {
		return
	}
	render(w, r, h.log, "form.html", h.formData(intake.FromRecord(f), f, nil))
}

func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := h.load(w, r, gate.ActionUpdate, false)
	if f == nil {
		return
	}
	viewURL := "/view/" + strconv.FormatUint(uint64(f.ID), 10)
	d, ok := h.decode(w, r, viewURL)
	if !ok {
		return
	}
	in := d.Input
	deleteIDs := attachmentIDs(r.PostForm["delete_attachments[]"])
	in.AttachmentCount += keptAttachments(f.Attachments, deleteIDs)
	if in.Trainees == nil {
		in.KeptTrainees = len(f.Trainees)
	}
	if errs := in.Validate(); !errs.Empty() {
		h.invalid(w, r, in, f, errs)
		return
	}

	// Submitter, approval and deletion state are not editable.
	rec := in.ToRecord(f.Submitter)
	found, err := h.forms.Update(ctx, f.ID, rec)
	if err != nil {
		serverError(w, r, h.log, "Failed to update the training form.", err, viewURL)
		return
	}
	if !found {
		notFound(w, r)
		return
	}

	warnings := h.saveChildren(ctx, f.ID, in, d.Warnings, true)
	warnings = append(warnings, h.saveUploads(ctx, f.ID, r)...)
	warnings = append(warnings, h.deleteAttachments(ctx, f.ID, deleteIDs)...)
	if err := h.forms.UpdateAttachmentDescriptions(ctx, f.ID, h.descriptionUpdates(r)); err != nil {
		h.log.Error("update attachment descriptions", err, map[string]interface{}{"form_id": f.ID})
		warnings = append(warnings, "attachment descriptions")
	}

	h.log.Info("training form updated", logPerson(r), map[string]interface{}{"form_id": f.ID})
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": f.ID, "warnings": warningMessages(warnings, true)})
		return
	}
	auth.SetFlash(w, auth.FlashSuccess, "Training form updated successfully!")
	for _, msg := range warningMessages(warnings, true) {
		auth.SetFlash(w, auth.FlashWarning, msg)
	}
	http.Redirect(w, r, viewURL, http.StatusSeeOther)
}

// deleteAttachments removes attachment rows and then their files. A file
// that cannot be removed is only logged.
func (h *FormHandler) deleteAttachments(ctx context.Context, formID uint, ids []uint) []string {
	rows, err := h.forms.DeleteAttachments(ctx, formID, ids)
	if err != nil {
		h.log.Error("delete attachments", err, map[string]interface{}{"form_id": formID})
		return []string{"attachments"}
	}
	for _, a := range rows {
		if err := h.store.Delete(ctx, storage.Key(formID, a.Filename)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.log.Warn("remove attachment file", err, map[string]interface{}{"form_id": formID, "filename": a.Filename})
		}
	}
	return nil
}

// descriptionUpdates reads update_attachment_descriptions[] values, each a
// JSON object {"id": .., "description": ..}. Malformed entries are skipped.
func (h *FormHandler) descriptionUpdates(r *http.Request) map[uint]string {
	out := map[uint]string{}
	for _, raw := range r.PostForm["update_attachment_descriptions[]"] {
		var upd struct {
			ID          json.Number `json:"id"`
			Description *string     `json:"description"`
		}
		if err := json.Unmarshal([]byte(raw), &upd); err != nil || upd.Description == nil {
			h.log.Warn("skip attachment description update", map[string]interface{}{"value": raw})
			continue
		}
		id, err := strconv.ParseUint(upd.ID.String(), 10, 64)
		if err != nil || id == 0 {
			h.log.Warn("skip attachment description update", map[string]interface{}{"value": raw})
			continue
		}
		out[uint(id)] = *upd.Description
	}
	return out
}

func attachmentIDs(raw []string) []uint {
	var ids []uint
	for _, v := range raw {
		if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil && id > 0 {
			ids = append(ids, uint(id))
		}
	}
	return ids
}

func keptAttachments(existing []models.Attachment, deleted []uint) int {
	gone := make(map[uint]bool, len(deleted))
	for _, id := range deleted {
		gone[id] = true
	}
	n := 0
	for _, a := range existing {
		if !gone[a.ID] {
			n++
		}
	}
	return n
}

// Approve toggles the approval flag. htmx callers get the list row
// (?row=1) or the view-page button (?view=1) back.
func (h *FormHandler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathID(r, "id")
	if !ok {
		notFound(w, r)
		return
	}
	approved, err := h.forms.ToggleApproval(ctx, id)
	if errors.Is(err, services.ErrFormNotFound) {
		notFound(w, r)
		return
	}
	if err != nil {
		serverError(w, r, h.log, "Failed to change the approval.", err, "/list")
		return
	}
	action := "unapproved"
	if approved {
		action = "approved"
	}
	h.log.Info("form approval status changed", logPerson(r), map[string]interface{}{
		"form_id": id,
		"admin":   currentEmail(r),
		"action":  action,
	})

	q := r.URL.Query()
	switch {
	case httpx.WantsJSON(r):
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "approved": approved})
	case q.Get("row") == "1" || q.Get("view") == "1":
		f, err := h.forms.Get(ctx, id, true)
		if err != nil {
			serverError(w, r, h.log, "Failed to load the training form.", err, "/list")
			return
		}
		if q.Get("row") == "1" {
			renderPartial(w, r, h.log, "list.html", "form_row", map[string]any{"Form": f})
		} else {
			renderPartial(w, r, h.log, "view.html", "approve_button", map[string]any{"Form": f})
		}
	default:
		if ref := r.Referer(); strings.Contains(ref, "/list") {
			http.Redirect(w, r, ref, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/view/"+strconv.FormatUint(uint64(id), 10), http.StatusSeeOther)
	}
}

func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.changeDeletion(w, r, gate.ActionDelete)
}

func (h *FormHandler) Recover(w http.ResponseWriter, r *http.Request) {
	h.changeDeletion(w, r, gate.ActionRecover)
}

// changeDeletion soft deletes or recovers the form, for its submitter or
// an admin.
func (h *FormHandler) changeDeletion(w http.ResponseWriter, r *http.Request, action gate.Action) {
	f := h.load(w, r, action, true)
	if f == nil {
		return
	}
	op, verb := h.forms.SoftDelete, "deleted"
	if action == gate.ActionRecover {
		op, verb = h.forms.Recover, "recovered"
	}
	viewURL := "/view/" + strconv.FormatUint(uint64(f.ID), 10)
	fields := map[string]interface{}{"form_id": f.ID, "original_submitter": f.Submitter}

	changed, err := op(r.Context(), f.ID)
	if err == nil && !changed {
		err = errors.Errorf("form %d is not in a state to be %s", f.ID, verb)
	}
	if err != nil {
		h.log.Error("form not "+verb, err, logPerson(r), fields)
		msg := "Error deleting training form"
		if action == gate.ActionRecover {
			msg = "Error recovering training form"
		}
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusConflict, msg, nil)
			return
		}
		auth.SetFlash(w, auth.FlashDanger, msg)
		http.Redirect(w, r, viewURL, http.StatusSeeOther)
		return
	}

	if action == gate.ActionDelete {
		h.log.Warn("training form deleted", logPerson(r), fields)
	} else {
		h.log.Info("training form recovered", logPerson(r), fields)
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": f.ID, "deleted": action == gate.ActionDelete})
		return
	}
	auth.SetFlash(w, auth.FlashSuccess, "Training form has been "+verb+" successfully")
	target := "/my_submissions"
	if h.authz.IsAdmin(r.Context()) {
		target = "/list"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *FormHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.forms.Leaderboard(r.Context())
	if err != nil {
		serverError(w, r, h.log, "Failed to load the leaderboard.", err, "/")
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, rows)
		return
	}
	render(w, r, h.log, "leaderboard.html", map[string]any{"Entries": rows})
}
