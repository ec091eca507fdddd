package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/cfg"
	"trading-dashboard/internal/common"
	"trading-dashboard/internal/provider"
	"trading-dashboard/internal/report"
)

func main() {
	// Parse command line arguments
	var (
		source     = flag.String("source", "", "Trade source: mock, csv, json, file, boltdb, rest (overrides config)")
		inputPath  = flag.String("input", "", "CSV or JSON trade file; implies -source file unless -source is set")
		dataPath   = flag.String("data", "", "BoltDB data directory for the boltdb source")
		apiURL     = flag.String("api", "", "Trade API base URL for the rest source")
		symbol     = flag.String("symbol", "", "Restrict to one symbol, e.g. BTC/USDT")
		startDate  = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate    = flag.String("end", "", "End date (YYYY-MM-DD, inclusive)")
		outputPath = flag.String("output", "reports", "Output directory for results")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		baseEquity = flag.Float64("base-equity", -1, "Starting equity (overrides config)")
		days       = flag.Int("days", 0, "Days of mock history (overrides config)")
		seed       = flag.Int64("seed", 0, "Mock generator seed (overrides config)")
		timeout    = flag.Duration("timeout", 30*time.Second, "Overall computation timeout")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	// Command line arguments override the config before it is validated
	config, err := cfg.Load(func(c *cfg.Settings) {
		if *inputPath != "" {
			c.InputPath = *inputPath
			c.Source = common.SourceFile
		}
		if *source != "" {
			c.Source = *source
		}
		if *dataPath != "" {
			c.DataPath = *dataPath
		}
		if *apiURL != "" {
			c.APIBaseURL = *apiURL
		}
		if *baseEquity >= 0 {
			c.BaseEquity = *baseEquity
		}
		if *days > 0 {
			c.MockDays = *days
		}
		if *seed != 0 {
			c.MockSeed = *seed
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	filter := analytics.Filter{Symbol: *symbol}
	if *startDate != "" {
		filter.From, err = time.Parse("2006-01-02", *startDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid start date format")
		}
	}
	if *endDate != "" {
		end, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid end date format")
		}
		filter.To = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		log.Fatal().Msg("Start date is after end date")
	}

	// Print configuration
	fmt.Println("=== Report Configuration ===")
	fmt.Printf("Source: %s\n", config.Source)
	fmt.Printf("Symbol: %s\n", orAll(*symbol))
	fmt.Printf("Base Equity: %.2f\n", config.BaseEquity)
	fmt.Printf("Output Directory: %s\n", *outputPath)
	fmt.Println("============================")

	src, closeSource, err := provider.Open(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open trade source")
	}
	defer closeSource()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	service := analytics.NewService(src, config.BaseEquity, 0)
	overview, err := service.Overview(ctx, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute performance")
	}

	reporter := report.NewReporter(overview, filter, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate reports")
	}

	// Print summary to console
	reporter.PrintSummary(os.Stdout)

	log.Info().
		Str("output", *outputPath).
		Int("strategies", len(overview.Strategies)).
		Msg("Report completed successfully")
}

func orAll(symbol string) string {
	if symbol == "" {
		return "All Assets"
	}
	return symbol
}
