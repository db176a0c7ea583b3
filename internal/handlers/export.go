package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/httpx"
	"github.com/diewo77/training-tracker/internal/export"
	"github.com/diewo77/training-tracker/internal/logging"
)

const exportFailed = "An error occurred during the export process."

// Exporter builds the Claim 5 workbook.
type Exporter interface {
	Export(ctx context.Context, opts *export.Options) ([]byte, error)
	Options(ctx context.Context) (export.QuarterInfo, error)
}

type ExportHandler struct {
	exporter Exporter
	log      logging.Logger
}

func NewExportHandler(exporter Exporter, log logging.Logger) *ExportHandler {
	return &ExportHandler{exporter: exporter, log: log}
}

// Options lists the quarters and the date range covered by approved forms.
func (h *ExportHandler) Options(w http.ResponseWriter, r *http.Request) {
	info, err := h.exporter.Options(r.Context())
	if err != nil {
		h.log.Error("export options", err, logPerson(r))
		httpx.JSONError(w, http.StatusInternalServerError, exportFailed, nil)
		return
	}
	if info.Quarters == nil {
		info.Quarters = []string{}
	}
	httpx.JSON(w, http.StatusOK, info)
}

// Export sends the workbook. POST takes the options as a JSON body, GET
// exports every approved form.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	opts := &export.Options{}
	if r.Method == http.MethodPost {
		// An empty body, chunked or not, exports everything.
		if err := json.NewDecoder(r.Body).Decode(opts); err != nil && !errors.Is(err, io.EOF) {
			h.log.Warn("decode export options", err, logPerson(r))
			httpx.JSONError(w, http.StatusBadRequest, "Invalid export options.", nil)
			return
		}
	}

	data, err := h.exporter.Export(r.Context(), opts)
	if err != nil {
		h.log.Error("claim 5 export", err, logPerson(r))
		if httpx.WantsJSON(r) {
			httpx.JSONError(w, http.StatusInternalServerError, exportFailed, nil)
			return
		}
		auth.SetFlash(w, auth.FlashDanger, exportFailed)
		http.Redirect(w, r, "/list", http.StatusSeeOther)
		return
	}

	h.log.Info("claim 5 exported", logPerson(r), map[string]interface{}{
		"quarters": opts.Quarters,
		"bytes":    len(data),
	})
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
