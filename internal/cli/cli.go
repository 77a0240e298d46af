package cli

import (
	"context"
	"fmt"
	"time"

	"habits/internal/config"
	"habits/internal/db"
	"habits/internal/habit"
	"habits/internal/jobs"
	"habits/internal/logger"
	"habits/internal/notify"

	"gorm.io/gorm"
)

// Context is shared by every command.
type Context struct {
	Config   config.Config
	DB       *gorm.DB
	Log      *logger.Logger
	Telegram *notify.Client
}

func NewContext() (*Context, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return &Context{
		Config:   cfg,
		DB:       gdb,
		Log:      log,
		Telegram: notify.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken),
	}, nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(app *Context) error {
	if err := db.AutoMigrateAndIndexes(app.DB); err != nil {
		return err
	}
	app.Log.Info("migrations applied")
	return nil
}

type SeedCmd struct{}

func (c *SeedCmd) Run(app *Context) error {
	svc := &habit.Service{DB: app.DB}
	res, err := svc.EnsureTemplates(context.Background(), habit.Catalog)
	if err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}
	app.Log.Info("templates seeded", "created", res.Created, "existed", res.Existed)
	return nil
}

type ScanCmd struct {
	Timeout time.Duration `help:"Abort the pass after this long." default:"5m"`
}

func (c *ScanCmd) Run(app *Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	s := &jobs.Scanner{
		DB:          app.DB,
		Notifier:    &notify.Sender{DB: app.DB, Client: app.Telegram, Log: app.Log},
		Location:    app.Config.Location,
		Concurrency: app.Config.ScanConcurrency,
		Log:         app.Log,
	}
	res, err := s.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	app.Log.Info("scan done",
		"initialized", res.Initialized,
		"due", res.Due,
		"notified", res.Notified,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return nil
}

type TelegramPollCmd struct {
	Limit int `help:"Maximum updates fetched per call." default:"50"`
}

func (c *TelegramPollCmd) Run(app *Context) error {
	l := &notify.Linker{DB: app.DB, Client: app.Telegram, Log: app.Log}
	res, err := l.PollOnce(context.Background(), c.Limit)
	if err != nil {
		return fmt.Errorf("telegram poll: %w", err)
	}
	app.Log.Info("telegram poll done", "updates", res.Updates, "linked", res.Linked, "offset", res.Offset)
	return nil
}
