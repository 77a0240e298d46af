package handler

import (
	"net/http"

	"habits/internal/auth"
	"habits/internal/habit"
	"habits/internal/logger"
)

type PublicHabitHandler struct {
	Svc      *habit.Service
	PageSize int
	Log      *logger.Logger
}

func (h *PublicHabitHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pageParam(r)

	rows, total, err := h.Svc.ListPublic(r.Context(), r.URL.Query().Get("q"), page, h.PageSize)
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPage(rows, total, page))
}

func (h *PublicHabitHandler) Adopt(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	created, err := h.Svc.Adopt(r.Context(), id, uid)
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(created))
}
