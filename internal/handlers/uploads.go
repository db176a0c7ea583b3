package handlers

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/storage"
)

type UploadHandler struct {
	store storage.Store
	log   logging.Logger
}

func NewUploadHandler(store storage.Store, log logging.Logger) *UploadHandler {
	return &UploadHandler{store: store, log: log}
}

// Serve streams /uploads/form_<id>/<filename>. Viewable types are shown
// inline, everything else is sent as a download.
func (h *UploadHandler) Serve(w http.ResponseWriter, r *http.Request) {
	folder, filename := r.PathValue("folder"), r.PathValue("filename")
	raw, ok := strings.CutPrefix(folder, "form_")
	id, err := strconv.ParseUint(raw, 10, 64)
	if !ok || err != nil || id == 0 {
		http.NotFound(w, r)
		return
	}
	key, err := storage.CleanKey(storage.Key(uint(id), filename))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	obj, err := h.store.Open(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.log.Error("open attachment", err, map[string]interface{}{"key": key})
		http.Error(w, "Failed to open attachment", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	disposition := "attachment"
	if storage.Viewable(filename) {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, obj.ModTime, obj)
}
