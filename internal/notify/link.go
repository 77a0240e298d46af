package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"habits/internal/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultLinkTTL = 10 * time.Minute

const (
	replyMissingCode = "Send the code as: /link <code>"
	replyUnknownCode = "Code not found or already used. Generate a new one in your account."
	replyExpiredCode = "Code expired. Generate a new one in your account."
	replyLinked      = "✅ Telegram is linked to your account. You will now receive reminders."
)

// Linker issues link codes and consumes "/link <code>" messages sent to the bot.
type Linker struct {
	DB     *gorm.DB
	Client *Client
	Log    *logger.Logger
	Now    func() time.Time
	TTL    time.Duration
}

type PollResult struct {
	Updates int
	Linked  int
	Offset  int64
}

func (l *Linker) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Generate replaces the user's active codes with a fresh one.
func (l *Linker) Generate(ctx context.Context, userID uint64) (*LinkToken, error) {
	now := l.now().UTC()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}

	tok := LinkToken{
		UserID:    userID,
		Code:      strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND used_at IS NULL AND expires_at > ?", userID, now).
			Delete(&LinkToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&tok).Error
	})
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// PollOnce reads the pending bot updates once and links accounts.
func (l *Linker) PollOnce(ctx context.Context, limit int) (PollResult, error) {
	var res PollResult

	var state PollState
	if err := l.DB.WithContext(ctx).Order("id").Limit(1).Find(&state).Error; err != nil {
		return res, err
	}
	var offset int64
	if state.ID != 0 {
		offset = state.LastUpdateID + 1
	}

	updates, err := l.Client.GetUpdates(ctx, offset, limit)
	if err != nil {
		return res, err
	}
	res.Updates = len(updates)
	res.Offset = state.LastUpdateID

	for _, upd := range updates {
		if upd.UpdateID > res.Offset {
			res.Offset = upd.UpdateID
		}
		if upd.Message == nil {
			continue
		}
		linked, err := l.handle(ctx, upd.Message)
		if err != nil {
			l.Log.Error("telegram link update", "update_id", upd.UpdateID, "error", err)
			continue
		}
		if linked {
			res.Linked++
		}
	}

	if res.Offset != state.LastUpdateID {
		state.LastUpdateID = res.Offset
		if err := l.DB.WithContext(ctx).Save(&state).Error; err != nil {
			return res, fmt.Errorf("save telegram offset: %w", err)
		}
	}
	return res, nil
}

func (l *Linker) handle(ctx context.Context, m *Message) (bool, error) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/link") {
		return false, nil
	}
	parts := strings.Fields(text)
	if len(parts) < 2 {
		l.reply(ctx, m.Chat.ID, replyMissingCode)
		return false, nil
	}
	code := parts[1]
	now := l.now().UTC()

	var tok LinkToken
	err := l.DB.WithContext(ctx).Where("code = ? AND used_at IS NULL", code).First(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.reply(ctx, m.Chat.ID, replyUnknownCode)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !tok.ExpiresAt.After(now) {
		l.reply(ctx, m.Chat.ID, replyExpiredCode)
		return false, nil
	}

	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a chat follows the account that linked it last
		if err := tx.Where("chat_id = ? AND user_id <> ?", m.Chat.ID, tok.UserID).Delete(&Profile{}).Error; err != nil {
			return err
		}
		p := Profile{UserID: tok.UserID, ChatID: m.Chat.ID, Username: m.From.Username, LinkedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "username", "linked_at"}),
		}).Create(&p).Error; err != nil {
			return err
		}
		return tx.Model(&LinkToken{}).Where("id = ?", tok.ID).Update("used_at", now).Error
	})
	if err != nil {
		return false, err
	}

	l.reply(ctx, m.Chat.ID, replyLinked)
	return true, nil
}

func (l *Linker) reply(ctx context.Context, chatID int64, text string) {
	if err := l.Client.SendMessage(ctx, chatID, text); err != nil {
		l.Log.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}
