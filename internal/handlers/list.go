package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/training-tracker/httpx"
	"github.com/diewo77/training-tracker/internal/intake"
	"github.com/diewo77/training-tracker/internal/models"
	"github.com/diewo77/training-tracker/internal/services"
)

// listParams are echoed back so pagination links keep the filters.
var listParams = []string{
	"search", "date_from", "date_to", "training_type",
	"approval_status", "delete_status", "sort_by", "sort_order",
}

// filterFromQuery reads a listing filter. Unparseable dates are ignored.
func filterFromQuery(q url.Values) (services.Filter, map[string]string) {
	params := make(map[string]string, len(listParams))
	for _, p := range listParams {
		params[p] = strings.TrimSpace(q.Get(p))
	}
	if params["sort_by"] == "" {
		params["sort_by"] = "submission_date"
	}
	if params["sort_order"] == "" {
		params["sort_order"] = "DESC"
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return services.Filter{
		Search:         params["search"],
		DateFrom:       queryDate(params["date_from"]),
		DateTo:         queryDate(params["date_to"]),
		TrainingType:   params["training_type"],
		ApprovalStatus: params["approval_status"],
		DeleteStatus:   params["delete_status"],
		SortBy:         params["sort_by"],
		SortOrder:      params["sort_order"],
		Page:           page,
	}, params
}

func queryDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(intake.DateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// List shows every form.
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// MySubmissions shows the forms of the current user.
func (h *FormHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *FormHandler) list(w http.ResponseWriter, r *http.Request, mine bool) {
	ctx := r.Context()
	flt, params := filterFromQuery(r.URL.Query())

	var (
		forms []models.TrainingForm
		total int64
		err   error
	)
	if mine {
		forms, total, err = h.forms.ListForSubmitter(ctx, currentEmail(r), flt)
	} else {
		forms, total, err = h.forms.List(ctx, flt)
	}
	if err != nil {
		serverError(w, r, h.log, "Failed to load training forms.", err, "/")
		return
	}

	isAdmin := h.authz.IsAdmin(ctx)
	totalPages := services.TotalPages(total)
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"forms":          forms,
			"total_count":    total,
			"total_pages":    totalPages,
			"current_page":   flt.Page,
			"params":         params,
			"has_filters":    flt.HasFilters(),
			"is_admin":       isAdmin,
			"my_submissions": mine,
		})
		return
	}
	render(w, r, h.log, "list.html", map[string]any{
		"Forms":         forms,
		"TotalCount":    total,
		"TotalPages":    totalPages,
		"CurrentPage":   flt.Page,
		"Params":        params,
		"HasFilters":    flt.HasFilters(),
		"MySubmissions": mine,
	})
}
