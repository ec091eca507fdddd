package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/cfg"
	"trading-dashboard/internal/dashboard"
	"trading-dashboard/internal/metrics"
	"trading-dashboard/internal/provider"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	zerolog.SetGlobalLevel(c.Level())

	log.Info().
		Str("source", c.Source).
		Int("port", c.ListenPort).
		Dur("cacheTTL", c.CacheTTL).
		Str("timeframe", c.DefaultTimeframe).
		Msg("starting trading dashboard")

	src, closeSource, err := provider.Open(c)
	if err != nil {
		log.Fatal().Err(err).Str("source", c.Source).Msg("trade source initialization failed")
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Error().Err(err).Msg("failed to close trade source")
		}
	}()

	m := metrics.New()
	wrapper := metrics.NewWrapper(m)

	service := analytics.NewService(src, c.BaseEquity, c.CacheTTL)
	service.SetObserver(wrapper)

	server := dashboard.NewServer(service, wrapper, dashboard.Config{
		Port:             c.ListenPort,
		RefreshInterval:  c.RefreshInterval,
		ChartCacheTTL:    c.ChartCacheTTL,
		DefaultTimeframe: c.DefaultTimeframe,
	})
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("dashboard start failed")
	}

	waitForShutdown()

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("dashboard shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// waitForShutdown blocks until an interrupt or termination signal arrives.
func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
}
