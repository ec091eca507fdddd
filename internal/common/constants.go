package common

// Trade sources
const (
	SourceMock   = "mock"
	SourceCSV    = "csv"
	SourceJSON   = "json"
	SourceFile   = "file" // CSV or JSON, chosen by file extension
	SourceBoltDB = "boltdb"
	SourceREST   = "rest"
)

// Sources lists every supported trade source.
var Sources = []string{SourceMock, SourceCSV, SourceJSON, SourceFile, SourceBoltDB, SourceREST}

// Dashboard timeframes
const (
	Timeframe1D  = "1D"
	Timeframe1W  = "1W"
	Timeframe1M  = "1M"
	Timeframe3M  = "3M"
	Timeframe1Y  = "1Y"
	TimeframeAll = "ALL"
)

// Timeframes lists the accepted timeframe values.
var Timeframes = []string{Timeframe1D, Timeframe1W, Timeframe1M, Timeframe3M, Timeframe1Y, TimeframeAll}

// ValidTimeframe reports whether tf is one of Timeframes.
func ValidTimeframe(tf string) bool {
	for _, v := range Timeframes {
		if v == tf {
			return true
		}
	}
	return false
}

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvSource           = "TRADE_SOURCE"
	EnvDataPath         = "DATA_PATH"
	EnvInputPath        = "INPUT_PATH"
	EnvAPIBaseURL       = "API_BASE_URL"
	EnvAPITimeout       = "API_TIMEOUT"
	EnvListenPort       = "LISTEN_PORT"
	EnvRefreshInterval  = "REFRESH_INTERVAL"
	EnvCacheTTL         = "CACHE_TTL"
	EnvChartCacheTTL    = "CHART_CACHE_TTL"
	EnvBaseEquity       = "BASE_EQUITY"
	EnvMockDays         = "MOCK_DAYS"
	EnvMockSeed         = "MOCK_SEED"
	EnvDefaultTimeframe = "DEFAULT_TIMEFRAME"
	EnvLogLevel         = "LOG_LEVEL"
)

// Configuration defaults
const (
	DefaultSource           = SourceMock
	DefaultDataPath         = "data"
	DefaultAPIBaseURL       = "http://localhost:3000"
	DefaultListenPort       = 8080
	DefaultBaseEquity       = 0.0
	DefaultMockDays         = 90
	DefaultMockSeed         = 42
	DefaultDefaultTimeframe = Timeframe1M
	DefaultLogLevel         = "info"
)

// Validation constants
const (
	MinListenPort = 1024
	MaxListenPort = 65535
	MaxMockDays   = 3650
)
