package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string
	JWTTTL    time.Duration

	// Location governs the calendar used for habit schedules.
	Location *time.Location

	TelegramBotToken string
	TelegramAPIBase  string

	ScanInterval    time.Duration
	ScanConcurrency int

	PageSize int

	LogMode        string
	LogFile        string
	MetricsEnabled bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		TelegramBotToken:     getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIBase:      strings.TrimRight(getenv("TELEGRAM_API_BASE", "https://api.telegram.org"), "/"),
		LogMode:              getenv("LOG_MODE", "dev"),
		LogFile:              getenv("LOG_FILE", ""),
		MetricsEnabled:       getenv("METRICS_ENABLED", "true") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.DatabaseURL, err = require("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.JWTSecret, err = require("JWT_SECRET"); err != nil {
		return cfg, err
	}
	if cfg.JWTTTL, err = duration("JWT_TTL", 7*24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.ScanInterval, err = duration("SCAN_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.ScanConcurrency, err = positiveInt("SCAN_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	if cfg.PageSize, err = positiveInt("PAGINATION_PAGE_SIZE", 5); err != nil {
		return cfg, err
	}

	tz := getenv("TIME_ZONE", "Europe/Moscow")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return cfg, fmt.Errorf("invalid TIME_ZONE %q: %w", tz, err)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func require(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("missing env: %s", key)
	}
	return v, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func positiveInt(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
