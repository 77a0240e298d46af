package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"habits/internal/auth"
	"habits/internal/logger"
	"habits/internal/notify"

	"gorm.io/gorm"
)

type MeHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func (h *MeHandler) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("id = ?", uid).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return nil, false
		}
		h.Log.Error("load user", "user_id", uid, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return nil, false
	}
	return &u, true
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    u.ID,
		"email":      u.Email,
		"created_at": u.CreatedAt,
	})
}

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *MeHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	u, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.OldPassword) {
		http.Error(w, "current password is wrong", http.StatusBadRequest)
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		http.Error(w, "new password too short", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.Log.Error("hash password", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if err := h.DB.WithContext(r.Context()).Model(u).Update("password_hash", hash).Error; err != nil {
		h.Log.Error("update password", "user_id", u.ID, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var p notify.Profile
	err := h.DB.WithContext(r.Context()).Where("user_id = ?", uid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"linked": false})
		return
	}
	if err != nil {
		h.Log.Error("load telegram profile", "user_id", uid, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"linked":    true,
		"chat_id":   p.ChatID,
		"username":  p.Username,
		"linked_at": p.LinkedAt,
	})
}
