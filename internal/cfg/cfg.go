package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"trading-dashboard/internal/common"
)

type Settings struct {
	Source           string // mock, csv, json, boltdb or rest
	DataPath         string // directory holding the trade database
	InputPath        string // trade file for the csv and json sources
	APIBaseURL       string
	APITimeout       time.Duration
	ListenPort       int
	RefreshInterval  time.Duration
	CacheTTL         time.Duration
	ChartCacheTTL    time.Duration
	BaseEquity       float64
	MockDays         int
	MockSeed         int64
	DefaultTimeframe string
	LogLevel         string
}

type ConfigFile struct {
	Source struct {
		Kind       string `yaml:"kind"`
		DataPath   string `yaml:"dataPath"`
		InputPath  string `yaml:"inputPath"`
		APIBaseURL string `yaml:"apiBaseURL"`
		APITimeout string `yaml:"apiTimeout"`
	} `yaml:"source"`

	Analytics struct {
		BaseEquity       float64 `yaml:"baseEquity"`
		CacheTTL         string  `yaml:"cacheTTL"`
		DefaultTimeframe string  `yaml:"defaultTimeframe"`
	} `yaml:"analytics"`

	Mock struct {
		Days int   `yaml:"days"`
		Seed int64 `yaml:"seed"`
	} `yaml:"mock"`

	Server struct {
		ListenPort      int    `yaml:"listenPort"`
		RefreshInterval string `yaml:"refreshInterval"`
		ChartCacheTTL   string `yaml:"chartCacheTTL"`
	} `yaml:"server"`

	System struct {
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

const (
	defaultAPITimeout      = 5 * time.Second
	defaultRefreshInterval = 5 * time.Second
	defaultCacheTTL        = 30 * time.Second
	defaultChartCacheTTL   = 5 * time.Minute
)

// Override adjusts loaded settings before they are validated, e.g. from
// command line flags.
type Override func(*Settings)

func Load(overrides ...Override) (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath, overrides...)
	}

	// Fallback to environment variables
	return loadFromEnv(overrides...)
}

func loadFromYAML(path string, overrides ...Override) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	apiTimeout := parseDurationOr(config.Source.APITimeout, defaultAPITimeout)
	refresh := parseDurationOr(config.Server.RefreshInterval, defaultRefreshInterval)
	cacheTTL := parseDurationOr(config.Analytics.CacheTTL, defaultCacheTTL)
	chartTTL := parseDurationOr(config.Server.ChartCacheTTL, defaultChartCacheTTL)

	// Environment variables override the file
	settings := Settings{
		Source:           getEnvOrDefault(common.EnvSource, orString(config.Source.Kind, common.DefaultSource)),
		DataPath:         getEnvOrDefault(common.EnvDataPath, orString(config.Source.DataPath, common.DefaultDataPath)),
		InputPath:        getEnvOrDefault(common.EnvInputPath, config.Source.InputPath),
		APIBaseURL:       getEnvOrDefault(common.EnvAPIBaseURL, orString(config.Source.APIBaseURL, common.DefaultAPIBaseURL)),
		APITimeout:       getDurationOrDefault(common.EnvAPITimeout, apiTimeout),
		ListenPort:       getIntFromEnvOrConfig(common.EnvListenPort, config.Server.ListenPort, common.DefaultListenPort),
		RefreshInterval:  getDurationOrDefault(common.EnvRefreshInterval, refresh),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		ChartCacheTTL:    getDurationOrDefault(common.EnvChartCacheTTL, chartTTL),
		BaseEquity:       getFloatOrDefault(common.EnvBaseEquity, config.Analytics.BaseEquity),
		MockDays:         getIntFromEnvOrConfig(common.EnvMockDays, config.Mock.Days, common.DefaultMockDays),
		MockSeed:         getInt64OrDefault(common.EnvMockSeed, orInt64(config.Mock.Seed, common.DefaultMockSeed)),
		DefaultTimeframe: getEnvOrDefault(common.EnvDefaultTimeframe, orString(config.Analytics.DefaultTimeframe, common.DefaultDefaultTimeframe)),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, orString(config.System.LogLevel, common.DefaultLogLevel)),
	}

	for _, override := range overrides {
		override(&settings)
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv(overrides ...Override) (Settings, error) {
	settings := Settings{
		Source:           getEnvOrDefault(common.EnvSource, common.DefaultSource),
		DataPath:         getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		InputPath:        os.Getenv(common.EnvInputPath), // optional
		APIBaseURL:       getEnvOrDefault(common.EnvAPIBaseURL, common.DefaultAPIBaseURL),
		APITimeout:       getDurationOrDefault(common.EnvAPITimeout, defaultAPITimeout),
		ListenPort:       getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		RefreshInterval:  getDurationOrDefault(common.EnvRefreshInterval, defaultRefreshInterval),
		CacheTTL:         getDurationOrDefault(common.EnvCacheTTL, defaultCacheTTL),
		ChartCacheTTL:    getDurationOrDefault(common.EnvChartCacheTTL, defaultChartCacheTTL),
		BaseEquity:       getFloatOrDefault(common.EnvBaseEquity, common.DefaultBaseEquity),
		MockDays:         getIntOrDefault(common.EnvMockDays, common.DefaultMockDays),
		MockSeed:         getInt64OrDefault(common.EnvMockSeed, common.DefaultMockSeed),
		DefaultTimeframe: getEnvOrDefault(common.EnvDefaultTimeframe, common.DefaultDefaultTimeframe),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
	}

	for _, override := range overrides {
		override(&settings)
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Level returns the parsed log level, falling back to info.
func (s *Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || s.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ListenAddr returns the dashboard listen address.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf(":%d", s.ListenPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

func orString(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func orInt64(v, defaultValue int64) int64 {
	if v != 0 {
		return v
	}
	return defaultValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate source
	switch settings.Source {
	case common.SourceMock:
		if settings.MockDays <= 0 || settings.MockDays > common.MaxMockDays {
			return fmt.Errorf("mock days must be between 1 and %d, got %d", common.MaxMockDays, settings.MockDays)
		}
	case common.SourceCSV, common.SourceJSON, common.SourceFile:
		if settings.InputPath == "" {
			return fmt.Errorf("input path is required for the %s source", settings.Source)
		}
	case common.SourceBoltDB:
		if settings.DataPath == "" {
			return fmt.Errorf("data path is required for the boltdb source")
		}
	case common.SourceREST:
		if settings.APIBaseURL == "" {
			return fmt.Errorf("API base URL cannot be empty")
		}
	default:
		return fmt.Errorf("unknown trade source %q, expected one of %v", settings.Source, common.Sources)
	}

	// Validate time durations
	if settings.APITimeout < time.Second || settings.APITimeout > time.Minute {
		return fmt.Errorf("API timeout must be between 1s and 1m, got %v", settings.APITimeout)
	}
	if settings.RefreshInterval < time.Second || settings.RefreshInterval > time.Hour {
		return fmt.Errorf("refresh interval must be between 1s and 1h, got %v", settings.RefreshInterval)
	}
	if settings.CacheTTL < 0 || settings.CacheTTL > time.Hour {
		return fmt.Errorf("cache TTL must be between 0 and 1h, got %v", settings.CacheTTL)
	}
	if settings.ChartCacheTTL < 0 || settings.ChartCacheTTL > 24*time.Hour {
		return fmt.Errorf("chart cache TTL must be between 0 and 24h, got %v", settings.ChartCacheTTL)
	}

	// Validate numeric values
	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d", common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}
	if settings.BaseEquity < 0 {
		return fmt.Errorf("base equity cannot be negative, got %f", settings.BaseEquity)
	}

	if !common.ValidTimeframe(settings.DefaultTimeframe) {
		return fmt.Errorf("default timeframe must be one of %v, got %q", common.Timeframes, settings.DefaultTimeframe)
	}
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}

	return nil
}
