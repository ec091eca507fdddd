package provider

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/cfg"
	"trading-dashboard/internal/common"
	"trading-dashboard/internal/storage"
)

// Open builds the trade source selected by settings. The returned close
// function releases the source and is never nil.
func Open(s cfg.Settings) (Source, func() error, error) {
	noop := func() error { return nil }

	switch s.Source {
	case common.SourceMock:
		src := NewMock(MockConfig{Seed: s.MockSeed, Days: s.MockDays, End: time.Now()})
		log.Info().
			Int64("seed", s.MockSeed).
			Int("days", s.MockDays).
			Int("trades", src.Len()).
			Msg("Generated mock trades")
		return src, noop, nil
	case common.SourceCSV:
		src, err := LoadCSV(s.InputPath)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case common.SourceJSON:
		src, err := LoadJSON(s.InputPath)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case common.SourceFile:
		src, err := LoadFile(s.InputPath)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case common.SourceBoltDB:
		store, err := storage.New(s.DataPath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case common.SourceREST:
		return NewREST(s.APIBaseURL, s.APITimeout), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown trade source %q", s.Source)
	}
}
