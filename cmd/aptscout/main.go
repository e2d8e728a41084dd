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
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aptscout/aptscout/config"
	"github.com/aptscout/aptscout/extract"
	"github.com/aptscout/aptscout/models"
	"github.com/aptscout/aptscout/notify"
	"github.com/aptscout/aptscout/pipeline"
	"github.com/aptscout/aptscout/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()
	sitesDefault := defaultCfg.SitesFile
	if value, ok := config.EnvString("APTSCOUT_SITES"); ok {
		sitesDefault = value
	}
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("APTSCOUT_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid APTSCOUT_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("APTSCOUT_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("APTSCOUT_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	sitesFile := flag.String("sites", sitesDefault, "YAML site roster to crawl")
	inputFile := flag.String("input", "", "Extract from a saved HTML file instead of crawling")
	inputLabel := flag.String("input-url", "", "Source URL to record for -input mode")
	maxPages := flag.Int("pages", defaultCfg.MaxPages, "Maximum pages to fetch per run")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	minBedrooms := flag.Int("min-beds", -1, "Minimum bedroom count (-1 disables)")
	maxRent := flag.Int("max-rent", -1, "Maximum monthly rent in dollars (-1 disables)")
	neighborhoods := flag.String("neighborhoods", "", "Comma-separated neighborhood allow-list")
	email := flag.Bool("email", false, "Send (or preview) an email summary of matches")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.SitesFile = *sitesFile
	cfg.MaxPages = *maxPages
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	cfg.Filters = buildFilters(*minBedrooms, *maxRent, *neighborhoods)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	var tee *teeWriter
	if *email {
		tee = &teeWriter{next: writer}
		writer = tee
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	var result *models.CrawlResult

	if *inputFile != "" {
		result, err = runFile(*inputFile, *inputLabel, p)
	} else {
		result, err = runCrawl(ctx, cfg, p)
	}
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if tee != nil {
		notifier, err := notify.NewNotifier(notify.LoadSMTPFromEnv(), 4096)
		if err != nil {
			slog.Error("creating notifier", slog.Any("error", err))
			os.Exit(1)
		}
		if _, err := notifier.Alert("aptscout", tee.All()); err != nil {
			slog.Error("sending alert", slog.Any("error", err))
		}
	}

	printSummary(result, time.Since(startTime), cfg.OutputFile, p.GetMetrics())
}

func runCrawl(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	sites, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		return nil, err
	}
	slog.Info("starting crawl",
		slog.Int("sites", len(sites)),
		slog.Int("workers", cfg.Parallelism),
	)

	s, err := scraper.NewScraper(cfg, sites)
	if err != nil {
		return nil, err
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := s.Run(ctx, p)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", shutdownErr))
		}
		cancel()
	}
	return result, err
}

func runFile(path, label string, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	if label == "" {
		label = "file://" + path
	}

	start := time.Now()
	listings, err := extract.Extract(string(data), label)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	if err := p.Process(listings); err != nil {
		return nil, fmt.Errorf("process listings: %w", err)
	}

	return &models.CrawlResult{
		StartTime:  start,
		EndTime:    time.Now(),
		TotalCount: len(listings),
		PageCount:  1,
	}, nil
}

func buildFilters(minBedrooms, maxRent int, neighborhoods string) config.Filters {
	var filters config.Filters
	if minBedrooms >= 0 {
		filters.MinBedrooms = &minBedrooms
	}
	if maxRent >= 0 {
		filters.MaxRent = &maxRent
	}
	if neighborhoods != "" {
		for _, name := range strings.Split(neighborhoods, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				filters.Neighborhoods = append(filters.Neighborhoods, trimmed)
			}
		}
	}
	return filters
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

// teeWriter passes listings through to the real writer while keeping a copy
// for the email summary.
type teeWriter struct {
	next pipeline.OutputWriter

	mu       sync.Mutex
	listings []*models.Listing
}

func (tw *teeWriter) Write(listings []*models.Listing) error {
	tw.mu.Lock()
	tw.listings = append(tw.listings, listings...)
	tw.mu.Unlock()
	return tw.next.Write(listings)
}

func (tw *teeWriter) Close() error {
	return tw.next.Close()
}

func (tw *teeWriter) Validate() error {
	return tw.next.Validate()
}

func (tw *teeWriter) All() []*models.Listing {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	out := make([]*models.Listing, len(tw.listings))
	copy(out, tw.listings)
	return out
}

func printSummary(result *models.CrawlResult, duration time.Duration, outputFile string, snapshot map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	totalItems := int64(0)
	if processed, ok := snapshot["processed_listings"].(int64); ok {
		totalItems = processed
	}

	fmt.Printf("  Listings kept: %d\n", totalItems)
	if result != nil {
		successRate := 0.0
		if result.RequestCount > 0 {
			successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
			fmt.Printf("  Success rate:  %.2f%%\n", successRate)
		}
		fmt.Printf("  Pages:         %d\n", result.PageCount)
		fmt.Printf("  Errors:        %d\n", result.ErrorCount)
		fmt.Printf("  Retries:       %d\n", result.RetryCount)
		if len(result.FailedURLs) > 0 {
			fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
		}
		if len(result.ErrorsByType) > 0 {
			fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
		}
	}
	if dropped, ok := snapshot["dropped"].(map[string]int); ok && len(dropped) > 0 {
		fmt.Printf("  Dropped:       %v\n", dropped)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
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
