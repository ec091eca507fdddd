package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/provider"
	"trading-dashboard/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "data", "Data directory path")
		days     = flag.Int("days", 90, "Number of days of trades to generate")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		csvPath  = flag.String("csv", "", "Also export the generated trades to this CSV file")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	fmt.Printf("Generating sample trades...\n")
	fmt.Printf("  Days: %d\n", *days)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Data Path: %s\n", *dataPath)

	trades := provider.GenerateTrades(provider.MockConfig{Seed: *seed, Days: *days, End: time.Now()})

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage")
	}
	defer store.Close()

	if err := store.SaveTrades(trades); err != nil {
		log.Fatal().Err(err).Msg("Failed to store trades")
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CSV file")
		}
		if err := provider.WriteCSV(f, trades); err != nil {
			f.Close()
			log.Fatal().Err(err).Msg("Failed to write CSV file")
		}
		if err := f.Close(); err != nil {
			log.Fatal().Err(err).Msg("Failed to close CSV file")
		}
		fmt.Printf("  CSV: %s\n", *csvPath)
	}

	total, err := store.Count()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count trades")
	}
	strategies, err := store.Strategies()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list strategies")
	}
	fmt.Printf("✓ Stored %d trades (%d in store)\n", len(trades), total)
	fmt.Printf("  Strategies: %s\n", strings.Join(strategies, ", "))
}
