package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// EnvDuration parses key as a Go duration ("30s", "5m").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// FromEnv overlays environment variables on top of DefaultConfig.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()

	// HEADERS is the legacy name; SCRAPER_USER_AGENT wins when both are set.
	strs := []struct {
		key string
		dst *string
	}{
		{"KITAPSEPETI_URL", &cfg.KitapsepetiURL},
		{"KITAPYURDU_URL", &cfg.KitapyurduURL},
		{"HEADERS", &cfg.UserAgent},
		{"SCRAPER_USER_AGENT", &cfg.UserAgent},
		{"SCRAPER_SELECTORS", &cfg.SelectorsFile},
		{"MONGO_URI", &cfg.MongoURI},
		{"MONGO_DATABASE", &cfg.MongoDatabase},
		{"SMTP_HOST", &cfg.SMTPHost},
		{"EMAIL_ADDRESS", &cfg.EmailAddress},
		{"EMAIL_PASSWORD", &cfg.EmailPassword},
		{"EMAIL_RECEIVER", &cfg.EmailReceiver},
		{"REDIS_ADDR", &cfg.RedisAddr},
		{"REDIS_STREAM", &cfg.RedisStream},
		{"MEMCACHE_ADDR", &cfg.MemcacheAddr},
		{"SCRAPER_SCHEDULE", &cfg.Schedule},
		{"SCRAPER_METRICS_ADDR", &cfg.MetricsAddr},
		{"SCRAPER_EXPORT", &cfg.ExportFile},
		{"SCRAPER_FORMAT", &cfg.ExportFormat},
	}
	for _, item := range strs {
		if value, ok := EnvString(item.key); ok {
			*item.dst = value
		}
	}

	if value, ok := EnvString("SCRAPER_SOURCES"); ok {
		cfg.Sources = splitList(value)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SCRAPER_PAGES", &cfg.MaxPages},
		{"SCRAPER_DEDUPE_CACHE", &cfg.DedupeCacheSize},
		{"SMTP_PORT", &cfg.SMTPPort},
		{"REDIS_DB", &cfg.RedisDB},
	}
	for _, item := range ints {
		value, ok, err := EnvInt(item.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*item.dst = value
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCRAPER_TIMEOUT", &cfg.Timeout},
		{"MONGO_TIMEOUT", &cfg.MongoTimeout},
		{"SCRAPER_LOCK_TTL", &cfg.LockTTL},
	}
	for _, item := range durations {
		value, ok, err := EnvDuration(item.key)
		if err != nil {
			return nil, err
		}
		if ok {
			*item.dst = value
		}
	}

	if value, ok, err := EnvBool("SCRAPER_RESPECT_ROBOTS"); err != nil {
		return nil, err
	} else if ok {
		cfg.RespectRobotsTxt = value
	}

	return cfg, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
