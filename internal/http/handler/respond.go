package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"habits/internal/habit"
	"habits/internal/logger"

	"github.com/go-chi/chi/v5"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeHabitError maps habit errors to client errors; anything else is a 500.
func writeHabitError(w http.ResponseWriter, log *logger.Logger, err error) {
	var verr *habit.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"violations": verr.Violations,
		})
	case errors.Is(err, habit.ErrProtected):
		http.Error(w, "public templates cannot be modified", http.StatusForbidden)
	case errors.Is(err, habit.ErrTemplateNotFound):
		http.Error(w, "public template not found", http.StatusNotFound)
	case errors.Is(err, habit.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		log.Error("habit request failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func idParam(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func pageParam(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 0 {
		return n
	}
	return 1
}
