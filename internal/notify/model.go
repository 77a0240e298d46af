package notify

import "time"

// Profile binds a user to the Telegram chat that receives reminders.
type Profile struct {
	ID       uint64    `gorm:"primaryKey"`
	UserID   uint64    `gorm:"uniqueIndex;not null"`
	ChatID   int64     `gorm:"uniqueIndex;not null"`
	Username string    `gorm:"type:varchar(255);not null;default:''"`
	LinkedAt time.Time `gorm:"not null"`
}

func (Profile) TableName() string { return "telegram_profiles" }

// LinkToken is a short-lived code the user sends to the bot as "/link <code>".
type LinkToken struct {
	ID        uint64     `gorm:"primaryKey"`
	UserID    uint64     `gorm:"index;not null"`
	Code      string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time  `gorm:"not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
}

func (LinkToken) TableName() string { return "telegram_link_tokens" }

// PollState remembers the last processed getUpdates id.
type PollState struct {
	ID           uint64 `gorm:"primaryKey"`
	LastUpdateID int64  `gorm:"not null"`
}

func (PollState) TableName() string { return "telegram_poll_states" }
