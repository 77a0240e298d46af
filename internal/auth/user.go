package auth

import "time"

// User owns habits. IsSystem marks inert accounts that own the public
// templates: they cannot log in and their habits are never scheduled.
type User struct {
	ID           uint64    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	IsSystem     bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

// UnusablePassword never matches a bcrypt comparison.
const UnusablePassword = "!"
