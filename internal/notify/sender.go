package notify

import (
	"context"
	"errors"

	"habits/internal/logger"

	"gorm.io/gorm"
)

// Sender delivers reminders to the chat linked to a user. It reports failure
// as false and never returns an error to the caller.
type Sender struct {
	DB     *gorm.DB
	Client *Client
	Log    *logger.Logger
}

func (s *Sender) Send(ctx context.Context, userID uint64, text string) bool {
	var p Profile
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Log.Warn("user has no telegram profile; skip sending", "user_id", userID)
		} else {
			s.Log.Error("load telegram profile", "user_id", userID, "error", err)
		}
		return false
	}

	if err := s.Client.SendMessage(ctx, p.ChatID, text); err != nil {
		s.Log.Error("telegram sendMessage failed", "user_id", userID, "chat_id", p.ChatID, "error", err)
		return false
	}
	return true
}
