package testutil

import (
	"fmt"
	"testing"
	"time"

	"habits/internal/auth"
	"habits/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DB returns a private, migrated in-memory SQLite database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.ConnectWith(dsn, db.Silent())
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func SeedUser(tb testing.TB, gdb *gorm.DB, email string) *auth.User {
	tb.Helper()
	return seedUser(tb, gdb, email, false)
}

func SeedSystemUser(tb testing.TB, gdb *gorm.DB, email string) *auth.User {
	tb.Helper()
	return seedUser(tb, gdb, email, true)
}

func seedUser(tb testing.TB, gdb *gorm.DB, email string, system bool) *auth.User {
	tb.Helper()
	u := &auth.User{Email: email, PasswordHash: auth.UnusablePassword, IsSystem: system, CreatedAt: time.Now()}
	if err := gdb.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}
