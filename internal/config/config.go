package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config defines attendance service configuration. Values are read once at
// process start and are immutable for the process lifetime.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"ATTEND_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"ATTEND_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"ATTEND_REDIS_ADDR"`
		Password string `yaml:"password" env:"ATTEND_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"ATTEND_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"ATTEND_REDIS_TTL"`
	} `yaml:"redis"`
	School struct {
		Latitude     float64 `yaml:"latitude" env:"SCHOOL_LATITUDE"`
		Longitude    float64 `yaml:"longitude" env:"SCHOOL_LONGITUDE"`
		RadiusMeters float64 `yaml:"radiusMeters" env:"RADIUS_METERS"`
		Timezone     string  `yaml:"timezone" env:"TIMEZONE"`
	} `yaml:"school"`
	Schedule struct {
		WorkStart    string `yaml:"workStart" env:"WORK_START_TIME"`
		WorkEnd      string `yaml:"workEnd" env:"WORK_END_TIME"`
		GraceMinutes int    `yaml:"graceMinutes" env:"GRACE_PERIOD_MINUTES"`
		WorkDays     string `yaml:"workDays" env:"WORK_DAYS"`
	} `yaml:"schedule"`
	Notify struct {
		MorningBefore  int    `yaml:"morningBefore" env:"MORNING_REMINDER_MINUTES_BEFORE"`
		LateAfter      int    `yaml:"lateAfter" env:"LATE_WARNING_MINUTES_AFTER"`
		CheckoutBefore int    `yaml:"checkoutBefore" env:"CHECKOUT_REMINDER_MINUTES_BEFORE"`
		ForgottenAfter int    `yaml:"forgottenAfter" env:"FORGOTTEN_CHECKOUT_MINUTES_AFTER"`
		WebhookURL     string `yaml:"webhookUrl" env:"NOTIFY_WEBHOOK_URL"`
	} `yaml:"notify"`
	Auth struct {
		JWTSecret     string `yaml:"jwtSecret" env:"ATTEND_JWT_SECRET"`
		TokenTTL      int    `yaml:"tokenTtlSeconds" env:"ATTEND_TOKEN_TTL"`
		AdminUserIDs  string `yaml:"adminUserIds" env:"ADMIN_USER_IDS"`
		BotAPIKeyHash string `yaml:"botApiKeyHash" env:"ATTEND_BOT_API_KEY_HASH"`
	} `yaml:"auth"`
}

// Load reads configuration via the shared YAML/env helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = 86400
	cfg.School.Latitude = 41.2995
	cfg.School.Longitude = 69.2401
	cfg.School.RadiusMeters = 50
	cfg.School.Timezone = "Asia/Tashkent"
	cfg.Schedule.WorkStart = "08:00"
	cfg.Schedule.WorkEnd = "17:00"
	cfg.Schedule.GraceMinutes = 15
	cfg.Schedule.WorkDays = "1,2,3,4,5"
	cfg.Notify.MorningBefore = 15
	cfg.Notify.LateAfter = 15
	cfg.Notify.CheckoutBefore = 15
	cfg.Notify.ForgottenAfter = 30

	if err := load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if cfg.School.RadiusMeters <= 0 {
		return nil, fmt.Errorf("config: invalid radius %v", cfg.School.RadiusMeters)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := parseClock(cfg.Schedule.WorkStart); err != nil {
		return nil, fmt.Errorf("config: work start: %w", err)
	}
	if _, err := parseClock(cfg.Schedule.WorkEnd); err != nil {
		return nil, fmt.Errorf("config: work end: %w", err)
	}
	if len(cfg.WorkDays()) == 0 {
		return nil, errors.New("config: at least one work day required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Location resolves the configured school time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.School.Timezone))
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.School.Timezone, err)
	}
	return loc, nil
}

// PresenceTTL returns the redis presence cache TTL as duration.
func (c *Config) PresenceTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// TokenTTL returns JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTL <= 0 {
		return time.Hour
	}
	return time.Duration(c.Auth.TokenTTL) * time.Second
}

// AdminIDs parses the comma-separated admin user id list.
func (c *Config) AdminIDs() []int64 {
	var ids []int64
	for _, part := range strings.Split(c.Auth.AdminUserIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// IsAdmin reports whether the user id is in the configured admin set.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs() {
		if id == userID {
			return true
		}
	}
	return false
}

// WorkDays parses the comma-separated ISO weekday list (1=Monday .. 7=Sunday).
func (c *Config) WorkDays() []int {
	var days []int
	for _, part := range strings.Split(c.Schedule.WorkDays, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil || day < 1 || day > 7 {
			continue
		}
		days = append(days, day)
	}
	return days
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the clock as minutes since midnight.
func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// WorkStart returns the configured work start clock.
func (c *Config) WorkStart() Clock {
	clock, err := parseClock(c.Schedule.WorkStart)
	if err != nil {
		return Clock{Hour: 8}
	}
	return clock
}

// WorkEnd returns the configured work end clock.
func (c *Config) WorkEnd() Clock {
	clock, err := parseClock(c.Schedule.WorkEnd)
	if err != nil {
		return Clock{Hour: 17}
	}
	return clock
}

func parseClock(s string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("clock out of range: %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}
