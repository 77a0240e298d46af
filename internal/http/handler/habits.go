package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"habits/internal/auth"
	"habits/internal/habit"
	"habits/internal/logger"
)

type HabitHandler struct {
	Svc      *habit.Service
	PageSize int
	Log      *logger.Logger
}

type habitDTO struct {
	ID              uint64          `json:"id"`
	UserID          uint64          `json:"user_id"`
	Place           string          `json:"place"`
	Time            habit.TimeOfDay `json:"time"`
	Action          string          `json:"action"`
	IsPleasant      bool            `json:"is_pleasant"`
	LinkedHabit     *uint64         `json:"linked_habit"`
	PeriodicityDays int             `json:"periodicity_days"`
	Reward          string          `json:"reward"`
	DurationSeconds int             `json:"duration_seconds"`
	IsPublic        bool            `json:"is_public"`
	NextRunAt       *time.Time      `json:"next_run_at"`
	LastNotifiedAt  *time.Time      `json:"last_notified_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toDTO(h *habit.Habit) habitDTO {
	return habitDTO{
		ID:              h.ID,
		UserID:          h.UserID,
		Place:           h.Place,
		Time:            h.TimeOfDay,
		Action:          h.Action,
		IsPleasant:      h.IsPleasant,
		LinkedHabit:     h.LinkedHabitID,
		PeriodicityDays: h.PeriodicityDays,
		Reward:          h.Reward,
		DurationSeconds: h.DurationSeconds,
		IsPublic:        h.IsPublic,
		NextRunAt:       h.NextRunAt,
		LastNotifiedAt:  h.LastNotifiedAt,
		CreatedAt:       h.CreatedAt,
		UpdatedAt:       h.UpdatedAt,
	}
}

type pageDTO struct {
	Count   int64      `json:"count"`
	Page    int        `json:"page"`
	Results []habitDTO `json:"results"`
}

func toPage(rows []habit.Habit, total int64, page int) pageDTO {
	out := pageDTO{Count: total, Page: page, Results: make([]habitDTO, 0, len(rows))}
	for i := range rows {
		out.Results = append(out.Results, toDTO(&rows[i]))
	}
	return out
}

// habitReq has no is_public: clients cannot publish habits.
type habitReq struct {
	Place           *string          `json:"place"`
	Time            *habit.TimeOfDay `json:"time"`
	Action          *string          `json:"action"`
	IsPleasant      *bool            `json:"is_pleasant"`
	LinkedHabit     nullableID       `json:"linked_habit"`
	PeriodicityDays *int             `json:"periodicity_days"`
	Reward          *string          `json:"reward"`
	DurationSeconds *int             `json:"duration_seconds"`
}

func (req habitReq) input() habit.Input {
	return habit.Input{
		Place:           req.Place,
		TimeOfDay:       req.Time,
		Action:          req.Action,
		IsPleasant:      req.IsPleasant,
		LinkedHabit:     habit.LinkChange{Set: req.LinkedHabit.Set, ID: req.LinkedHabit.ID},
		PeriodicityDays: req.PeriodicityDays,
		Reward:          req.Reward,
		DurationSeconds: req.DurationSeconds,
	}
}

// nullableID tells an absent field from an explicit null.
type nullableID struct {
	Set bool
	ID  *uint64
}

func (n *nullableID) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.ID = nil
		return nil
	}
	var id uint64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	n.ID = &id
	return nil
}

func decodeHabitReq(w http.ResponseWriter, r *http.Request) (habitReq, bool) {
	var req habitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	page := pageParam(r)

	rows, total, err := h.Svc.List(r.Context(), uid, page, h.PageSize)
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPage(rows, total, page))
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	req, ok := decodeHabitReq(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), uid, req.input())
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(created))
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	found, err := h.Svc.Get(r.Context(), uid, id)
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(found))
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	req, ok := decodeHabitReq(w, r)
	if !ok {
		return
	}
	updated, err := h.Svc.Update(r.Context(), uid, id, req.input())
	if err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(updated))
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.Svc.Delete(r.Context(), uid, id); err != nil {
		writeHabitError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
