package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"habits/internal/auth"
	"habits/internal/logger"

	"gorm.io/gorm"
)

type AuthHandler struct {
	DB  *gorm.DB
	JWT *auth.JWT
	Log *logger.Logger
}

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < auth.MinPasswordLength {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	if req.Password2 != "" && req.Password2 != req.Password {
		http.Error(w, "passwords do not match", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.Log.Error("hash password", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	u := auth.User{Email: req.Email, PasswordHash: hash, CreatedAt: time.Now()}
	if err := h.DB.WithContext(r.Context()).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			http.Error(w, "email already used", http.StatusConflict)
			return
		}
		h.Log.Error("create user", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.writeToken(w, http.StatusCreated, u.ID)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	var u auth.User
	if err := h.DB.WithContext(r.Context()).Where("email = ? AND is_system = ?", req.Email, false).First(&u).Error; err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !auth.ComparePassword(u.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	h.writeToken(w, http.StatusOK, u.ID)
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, status int, userID uint64) {
	token, err := h.JWT.Sign(userID)
	if err != nil {
		h.Log.Error("sign token", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]any{"token": token})
}
