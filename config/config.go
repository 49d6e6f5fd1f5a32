package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalogs/models"
)

// Config holds scraper configuration.
type Config struct {
	KitapsepetiURL   string
	KitapyurduURL    string
	Sources          []string
	MaxPages         int
	Timeout          time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	SelectorsFile    string

	MongoURI        string
	MongoDatabase   string
	MongoTimeout    time.Duration
	DedupeCacheSize int

	SMTPHost      string
	SMTPPort      int
	EmailAddress  string
	EmailPassword string
	EmailReceiver string

	RedisAddr   string
	RedisDB     int
	RedisStream string

	MemcacheAddr string
	LockTTL      time.Duration

	Schedule    string
	RunOnce     bool
	MetricsAddr string

	ExportFile   string
	ExportFormat string // "", csv, json, or dual
	Verbose      bool
}

// DefaultConfig returns the production search targets and local services.
func DefaultConfig() *Config {
	return &Config{
		KitapsepetiURL:  "https://www.kitapsepeti.com/arama?q=Python&stock=1",
		KitapyurduURL:   "https://www.kitapyurdu.com/index.php?route=product/search&filter_name=Python&filter_in_stock=0&limit=100",
		Sources:         []string{string(models.SourceKitapyurdu), string(models.SourceKitapsepeti)},
		MaxPages:        0,
		Timeout:         30 * time.Second,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MongoURI:        "mongodb://localhost:27017/",
		MongoDatabase:   "smartmaple",
		MongoTimeout:    10 * time.Second,
		DedupeCacheSize: 10000,
		SMTPHost:        "smtp.office365.com",
		SMTPPort:        587,
		RedisStream:     "scraper:crawls",
		LockTTL:         6 * time.Hour,
		Schedule:        "0 0 * * *",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for _, name := range c.Sources {
		source, err := models.ParseSource(name)
		if err != nil {
			return err
		}
		if err := validateBaseURL(source, c.baseURL(source)); err != nil {
			return err
		}
	}

	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("mongo uri cannot be empty")
	}
	if c.MongoDatabase == "" {
		return fmt.Errorf("mongo database cannot be empty")
	}
	if c.MongoTimeout <= 0 {
		return fmt.Errorf("mongo timeout must be positive")
	}
	if c.DedupeCacheSize <= 0 {
		return fmt.Errorf("dedupe cache size must be positive")
	}
	if c.EmailReceiver != "" {
		if c.EmailAddress == "" {
			return fmt.Errorf("email address is required to send notifications")
		}
		if c.SMTPHost == "" {
			return fmt.Errorf("smtp host is required to send notifications")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return fmt.Errorf("smtp port %d out of range", c.SMTPPort)
		}
	}
	if c.RedisAddr != "" && c.RedisStream == "" {
		return fmt.Errorf("redis stream cannot be empty when redis is enabled")
	}
	if c.MemcacheAddr != "" && c.LockTTL < time.Second {
		return fmt.Errorf("lock ttl must be at least one second")
	}
	if !c.RunOnce && strings.TrimSpace(c.Schedule) == "" {
		return fmt.Errorf("schedule cannot be empty unless running once")
	}
	switch c.ExportFormat {
	case "", "csv", "json", "dual":
	default:
		return fmt.Errorf("export format must be csv, json, or dual")
	}
	if c.ExportFormat != "" && c.ExportFile == "" {
		return fmt.Errorf("export file cannot be empty when an export format is set")
	}

	return nil
}

// Targets returns the enabled sources with their search URLs, in crawl order.
func (c *Config) Targets() []models.Target {
	targets := make([]models.Target, 0, len(c.Sources))
	for _, name := range c.Sources {
		source, err := models.ParseSource(name)
		if err != nil {
			continue
		}
		targets = append(targets, models.Target{Source: source, BaseURL: c.baseURL(source)})
	}
	return targets
}

func (c *Config) baseURL(source models.Source) string {
	if source == models.SourceKitapsepeti {
		return c.KitapsepetiURL
	}
	return c.KitapyurduURL
}

func validateBaseURL(source models.Source, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s base URL cannot be empty", source)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s base URL: %w", source, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s base URL must include a host", source)
	}
	if source.Stop() == models.StopShortPages {
		limit, err := strconv.Atoi(parsed.Query().Get("limit"))
		if err != nil || limit <= 0 {
			return fmt.Errorf("%s base URL must carry a positive limit parameter", source)
		}
	}
	return nil
}
