package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-catalogs/config"
	"github.com/aluiziolira/go-scrape-catalogs/extractor"
	"github.com/aluiziolira/go-scrape-catalogs/models"
	"github.com/aluiziolira/go-scrape-catalogs/notify"
	"github.com/aluiziolira/go-scrape-catalogs/pipeline"
	"github.com/aluiziolira/go-scrape-catalogs/schedule"
	"github.com/aluiziolira/go-scrape-catalogs/scraper"
	"github.com/aluiziolira/go-scrape-catalogs/store"
)

const runLockKey = "go-scrape-catalogs:run"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	once := flag.Bool("once", false, "Crawl every source once and exit")
	scheduleSpec := flag.String("schedule", cfg.Schedule, "Cron schedule for recurring runs")
	sources := flag.String("sources", strings.Join(cfg.Sources, ","), "Comma-separated sources to crawl, in order")
	maxPages := flag.Int("max-pages", cfg.MaxPages, "Stop a crawl after this many pages (0 = no limit)")
	timeout := flag.Duration("timeout", cfg.Timeout, "HTTP request timeout")
	respectRobots := flag.Bool("respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	exportFile := flag.String("export", cfg.ExportFile, "Also write inserted records to this file")
	exportFormat := flag.String("format", cfg.ExportFormat, "Export format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	selectors := flag.String("selectors", cfg.SelectorsFile, "YAML selector rules overriding the built-in ones")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	cfg.RunOnce = *once
	cfg.Schedule = *scheduleSpec
	cfg.Sources = splitSources(*sources)
	cfg.MaxPages = *maxPages
	cfg.Timeout = *timeout
	cfg.RespectRobotsTxt = *respectRobots
	cfg.ExportFile = *exportFile
	cfg.ExportFormat = strings.ToLower(*exportFormat)
	if cfg.ExportFile != "" && cfg.ExportFormat == "" {
		cfg.ExportFormat = "csv"
	}
	cfg.MetricsAddr = *metricsAddr
	cfg.SelectorsFile = *selectors
	cfg.Verbose = *verbose

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	if err := run(ctx, cfg); err != nil {
		slog.Error("scraper failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	metrics := scraper.NewMetrics()
	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	ext, err := extractor.Load(cfg.SelectorsFile)
	if err != nil {
		return fmt.Errorf("load selector rules: %w", err)
	}

	var writer pipeline.OutputWriter
	if cfg.ExportFormat != "" {
		if writer, err = createWriter(cfg.ExportFormat, cfg.ExportFile); err != nil {
			return fmt.Errorf("create export writer: %w", err)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close writer", slog.Any("error", err))
			}
		}()
	}

	notifier, closeNotifier := newNotifier(cfg)
	defer closeNotifier()

	connector := store.NewConnector(store.Options{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
		Timeout:  cfg.MongoTimeout,
	})

	s, err := scraper.NewScraper(cfg, scraper.Deps{
		Fetcher:   scraper.NewFetcher(cfg, metrics),
		Extractor: ext,
		OpenStore: func(ctx context.Context, source models.Source) (scraper.Store, error) {
			session, err := connector.Open(ctx, source)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Notifier: notifier,
		Export:   writer,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("initialise scraper: %w", err)
	}

	var lock schedule.Lock
	if cfg.MemcacheAddr != "" {
		lock = schedule.NewMemcacheLock(cfg.MemcacheAddr, runLockKey, cfg.LockTTL)
	}
	runner := schedule.NewRunner(s, cfg.Targets(), lock)

	slog.Info("starting scraper",
		slog.Any("sources", cfg.Sources),
		slog.Bool("once", cfg.RunOnce),
		slog.Int("max_pages", cfg.MaxPages),
	)

	if !cfg.RunOnce {
		sched, err := schedule.NewScheduler(cfg.Schedule, runner)
		if err != nil {
			return err
		}
		return sched.Run(ctx)
	}

	start := time.Now()
	reports, runErr := runner.RunAll(ctx)
	if writer != nil {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
		}
	}
	printSummary(reports, time.Since(start), cfg.ExportFile)
	return runErr
}

// newNotifier builds the configured transports. The returned notifier is
// nil when none is configured.
func newNotifier(cfg *config.Config) (scraper.Notifier, func()) {
	var (
		notifiers notify.Multi
		closers   []func() error
	)
	if cfg.EmailReceiver != "" {
		notifiers = append(notifiers, notify.NewSMTP(notify.SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.EmailAddress,
			Password:  cfg.EmailPassword,
			Recipient: cfg.EmailReceiver,
			Timeout:   cfg.Timeout,
		}))
	}
	if cfg.RedisAddr != "" {
		stream := notify.NewRedisStream(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, 1000)
		notifiers = append(notifiers, stream)
		closers = append(closers, stream.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("close notifier", slog.Any("error", err))
			}
		}
	}
	if len(notifiers) == 0 {
		slog.Warn("no notification transport configured")
		return nil, closeAll
	}
	return notifiers, closeAll
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(reports []*models.CrawlReport, duration time.Duration, exportFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	for _, r := range reports {
		fmt.Printf("  %-12s accepted=%d pages=%d duplicates=%d suppressed=%d invalid=%d reason=%s\n",
			r.Source, r.Accepted, r.Pages, r.Duplicates, r.Suppressed, r.Invalid, r.Reason)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	if exportFile != "" {
		fmt.Printf("  Export file:   %s\n", exportFile)
	}
	fmt.Println(separator)
}

func splitSources(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
