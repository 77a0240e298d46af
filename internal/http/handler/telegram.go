package handler

import (
	"net/http"
	"net/url"
	"strings"

	"habits/internal/auth"
	"habits/internal/logger"
	"habits/internal/notify"
)

type TelegramHandler struct {
	Linker *notify.Linker
	Log    *logger.Logger
}

// Link issues a fresh code; ?bot=<username> adds a t.me deep link.
func (h *TelegramHandler) Link(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	tok, err := h.Linker.Generate(r.Context(), uid)
	if err != nil {
		h.Log.Error("generate telegram link", "user_id", uid, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	var link *string
	if bot := strings.TrimSpace(r.URL.Query().Get("bot")); bot != "" {
		s := "https://t.me/" + url.PathEscape(bot) + "?start=" + tok.Code
		link = &s
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":       tok.Code,
		"expires_at": tok.ExpiresAt,
		"tme_link":   link,
	})
}
