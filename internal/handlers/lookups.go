package handlers

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/diewo77/training-tracker/httpx"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/lookup"
)

// Lookups serves the employee and training catalog lists.
type Lookups interface {
	Lookup(ctx context.Context, entity string) (any, error)
}

type LookupHandler struct {
	lookups Lookups
	log     logging.Logger
}

func NewLookupHandler(lookups Lookups, log logging.Logger) *LookupHandler {
	return &LookupHandler{lookups: lookups, log: log}
}

// Employees never fails: an empty list is returned when the data cannot
// be loaded.
func (h *LookupHandler) Employees(w http.ResponseWriter, r *http.Request) {
	data, err := h.lookups.Lookup(r.Context(), lookup.EntityEmployees)
	if err != nil {
		h.log.Error("employee lookup", err)
		httpx.JSON(w, http.StatusOK, []any{})
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *LookupHandler) Entity(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	data, err := h.lookups.Lookup(r.Context(), entity)
	if errors.Is(err, lookup.ErrUnknownEntity) {
		httpx.JSONError(w, http.StatusNotFound, "Data not found for "+entity, nil)
		return
	}
	if err != nil {
		h.log.Error("lookup", err, map[string]interface{}{"entity": entity})
		httpx.JSONError(w, http.StatusInternalServerError, "Server error during lookup", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}
