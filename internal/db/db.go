package db

import (
	"fmt"
	"strings"

	"habits/internal/auth"
	"habits/internal/habit"
	"habits/internal/notify"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Connect opens Postgres, or SQLite when the DSN starts with "sqlite:".
func Connect(dsn string) (*gorm.DB, error) {
	return ConnectWith(dsn, &gorm.Config{})
}

func ConnectWith(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}
	// unique violations surface as gorm.ErrDuplicatedKey on both dialects
	cfg.TranslateError = true
	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}
	if dialector.Name() == "sqlite" {
		// one writer; also keeps a private in-memory database alive
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

// Silent is a gorm config without query logging.
func Silent() *gorm.Config {
	return &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&habit.Habit{},
		&notify.Profile{},
		&notify.LinkToken{},
		&notify.PollState{},
	); err != nil {
		return err
	}

	stmts := []string{
		// template seeding is keyed on owner+action+time+place
		`create unique index if not exists uq_habits_template on habits(user_id, action, time_of_day, place) where is_public = true;`,
		`create index if not exists idx_habits_due on habits(is_public, next_run_at);`,
		`create index if not exists idx_habits_user_created on habits(user_id, created_at desc);`,
		`create index if not exists idx_link_tokens_user_active on telegram_link_tokens(user_id, used_at, expires_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
