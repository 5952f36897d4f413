package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/nutrisync/internal/stream"
	"github.com/hyperengineering/nutrisync/internal/types"
	"github.com/hyperengineering/nutrisync/internal/water"
)

// SyncResponse reports one push of locally queued entries.
type SyncResponse[T any] struct {
	Synced    []types.Entry[T] `json:"synced"`
	Remaining int              `json:"remaining"`
	Error     string           `json:"error,omitempty"`
}

// createdStatus is 201 for a confirmed entry and 202 for one that was only
// queued locally.
func createdStatus[T any](e types.Entry[T]) int {
	if e.IsPending() {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

func nonNil[T any](list []types.Entry[T]) []types.Entry[T] {
	if list == nil {
		return []types.Entry[T]{}
	}
	return list
}

// ListMeals handles GET /api/v1/meals
func (h *Handler) ListMeals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.meals.All()))
}

// MealTotals handles GET /api/v1/meals/totals
func (h *Handler) MealTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.meals.Totals())
}

// CreateMeal handles POST /api/v1/meals
func (h *Handler) CreateMeal(w http.ResponseWriter, r *http.Request) {
	var m types.Meal
	if !decodeBody(w, r, &m, false) {
		return
	}
	entry, err := h.meals.Create(r.Context(), m)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, createdStatus(entry), entry)
}

// UpdateMeal handles PUT /api/v1/meals/{id}
func (h *Handler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	var m types.Meal
	if !decodeBody(w, r, &m, false) {
		return
	}
	entry, err := h.meals.Update(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteMeal handles DELETE /api/v1/meals/{id}
func (h *Handler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := h.meals.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncMeals handles POST /api/v1/meals/sync
func (h *Handler) SyncMeals(w http.ResponseWriter, r *http.Request) {
	synced, err := h.meals.SyncLocalToRemote(r.Context())
	writeSync(w, r, synced, len(h.meals.Pending()), err)
}

// ListWater handles GET /api/v1/water
func (h *Handler) ListWater(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Entries []types.Entry[types.WaterIntake] `json:"entries"`
		Totals  types.WaterTotals                `json:"totals"`
	}{nonNil(h.water.All()), h.water.Totals()})
}

type createWaterRequest struct {
	types.WaterIntake
	// Glasses is converted to millilitres when amount is unset.
	Glasses int `json:"glasses,omitempty"`
}

// CreateWater handles POST /api/v1/water
func (h *Handler) CreateWater(w http.ResponseWriter, r *http.Request) {
	var req createWaterRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	intake := req.WaterIntake
	if intake.Amount == 0 && req.Glasses > 0 {
		intake.Amount = float64(req.Glasses * water.GlassML)
	}
	entry, err := h.water.Create(r.Context(), intake)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, createdStatus(entry), entry)
}

// DeleteWater handles DELETE /api/v1/water/{id}
func (h *Handler) DeleteWater(w http.ResponseWriter, r *http.Request) {
	if err := h.water.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncWater handles POST /api/v1/water/sync
func (h *Handler) SyncWater(w http.ResponseWriter, r *http.Request) {
	synced, err := h.water.SyncLocalToRemote(r.Context())
	writeSync(w, r, synced, len(h.water.Pending()), err)
}

// writeSync reports a partial sync as a normal response; only a sync that
// could not start is an error.
func writeSync[T any](w http.ResponseWriter, r *http.Request, synced []types.Entry[T], remaining int, err error) {
	resp := SyncResponse[T]{Synced: nonNil(synced), Remaining: remaining}
	if err != nil {
		if !errors.Is(err, stream.ErrSyncIncomplete) {
			MapError(w, r, err)
			return
		}
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
