package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings are the tunables handed to services explicitly instead of read ad hoc.
type Settings struct {
	DefaultPageSize    int
	ReportTimezone     string
	DefaultCoin        string
	AmalNetConcurrency int
	ReportSlowMs       int64

	TokenLifespan    time.Duration
	PasswordResetTTL time.Duration

	EmailTopic string
	SmsTopic   string
	PushTopic  string
}

// LoadSettings reads Settings from env. Unset or malformed values fall back to defaults.
//
//   - DEFAULT_PAGE_SIZE (10)
//   - REPORT_TIMEZONE (Asia/Singapore)
//   - AMAL_COIN (AMAL)
//   - AMAL_NET_CONCURRENCY (8)
//   - REPORT_SLOW_MS (500)
//   - TOKEN_HOUR_LIFESPAN (12)
//   - PASSWORD_RESET_TTL_MINUTES (30)
//   - NOTIFICATION_TOPIC_EMAIL / _SMS / _PUSH
func LoadSettings() Settings {
	return Settings{
		DefaultPageSize:    positiveIntFromEnv("DEFAULT_PAGE_SIZE", 10),
		ReportTimezone:     stringFromEnv("REPORT_TIMEZONE", "Asia/Singapore"),
		DefaultCoin:        strings.ToUpper(stringFromEnv("AMAL_COIN", "AMAL")),
		AmalNetConcurrency: positiveIntFromEnv("AMAL_NET_CONCURRENCY", 8),
		ReportSlowMs:       int64(positiveIntFromEnv("REPORT_SLOW_MS", 500)),
		TokenLifespan:      time.Duration(positiveIntFromEnv("TOKEN_HOUR_LIFESPAN", 12)) * time.Hour,
		PasswordResetTTL:   time.Duration(positiveIntFromEnv("PASSWORD_RESET_TTL_MINUTES", 30)) * time.Minute,
		EmailTopic:         stringFromEnv("NOTIFICATION_TOPIC_EMAIL", "notification-email"),
		SmsTopic:           stringFromEnv("NOTIFICATION_TOPIC_SMS", "notification-sms"),
		PushTopic:          stringFromEnv("NOTIFICATION_TOPIC_PUSH", "notification-push"),
	}
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func positiveIntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// EnvBool accepts 1/true/yes/y/on.
func EnvBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}
