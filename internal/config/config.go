package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/platform/resilience"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service. Everything is read
// once at startup and handed to components at construction time; nothing in
// the aggregation path reads the environment directly.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	LogLevel           logging.Level

	SupportedLeagues []string
	DefaultYear      int

	CacheEnabled bool
	CacheTTL     time.Duration

	OddsAPIBaseURL    string
	OddsAPIKey        string
	OddsAPITimeout    time.Duration
	OddsAPIMaxRetries int
	OddsAPICircuit    resilience.CircuitBreakerConfig

	CFBDBaseURL    string
	CFBDTimeout    time.Duration
	CFBDMaxRetries int
	CFBDCircuit    resilience.CircuitBreakerConfig

	SidearmEnabled bool

	AnalyzerEnabled    bool
	AnalyzerBaseURL    string
	AnalyzerTimeout    time.Duration
	AnalyzerChunkSize  int
	AnalyzerMaxWorkers int
	AnalyzerCircuit    resilience.CircuitBreakerConfig

	PprofEnabled bool
	PprofAddr    string

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}

	corsAllowedOrigins := splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*"))
	if len(corsAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}

	supportedLeagues := splitCSV(strings.ToLower(getEnv("APP_SUPPORTED_LEAGUES", "cfb")))
	if len(supportedLeagues) == 0 {
		return Config{}, fmt.Errorf("APP_SUPPORTED_LEAGUES cannot be empty")
	}

	defaultYear, err := getEnvAsInt("APP_DEFAULT_YEAR", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_DEFAULT_YEAR: %w", err)
	}
	if defaultYear < 0 {
		return Config{}, fmt.Errorf("APP_DEFAULT_YEAR must be >= 0")
	}

	cacheEnabled, err := getEnvAsBool("CACHE_ENABLED", "true")
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := getEnvAsDuration("CACHE_TTL", "60s")
	if err != nil {
		return Config{}, err
	}

	oddsAPIKey := strings.TrimSpace(getEnv("ODDS_API_KEY", ""))
	if oddsAPIKey == "" {
		return Config{}, fmt.Errorf("ODDS_API_KEY is required")
	}
	oddsAPITimeout, err := getEnvAsDuration("ODDS_API_TIMEOUT", "12s")
	if err != nil {
		return Config{}, err
	}
	oddsAPIMaxRetries, err := getEnvAsInt("ODDS_API_MAX_RETRIES", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse ODDS_API_MAX_RETRIES: %w", err)
	}
	if oddsAPIMaxRetries < 0 {
		return Config{}, fmt.Errorf("ODDS_API_MAX_RETRIES must be >= 0")
	}
	oddsAPICircuit, err := loadCircuit("ODDS_API")
	if err != nil {
		return Config{}, err
	}

	cfbdTimeout, err := getEnvAsDuration("CFBD_TIMEOUT", "12s")
	if err != nil {
		return Config{}, err
	}
	cfbdMaxRetries, err := getEnvAsInt("CFBD_MAX_RETRIES", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse CFBD_MAX_RETRIES: %w", err)
	}
	if cfbdMaxRetries < 0 {
		return Config{}, fmt.Errorf("CFBD_MAX_RETRIES must be >= 0")
	}
	cfbdCircuit, err := loadCircuit("CFBD")
	if err != nil {
		return Config{}, err
	}

	sidearmEnabled, err := getEnvAsBool("SIDEARM_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}

	analyzerEnabled, err := getEnvAsBool("ANALYZER_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	analyzerBaseURL := strings.TrimSpace(getEnv("ANALYZER_BASE_URL", ""))
	if analyzerEnabled && analyzerBaseURL == "" {
		return Config{}, fmt.Errorf("ANALYZER_BASE_URL is required when ANALYZER_ENABLED=true")
	}
	analyzerTimeout, err := getEnvAsDuration("ANALYZER_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	analyzerChunkSize, err := getEnvAsInt("ANALYZER_CHUNK_SIZE", 25)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYZER_CHUNK_SIZE: %w", err)
	}
	if analyzerChunkSize < 1 {
		return Config{}, fmt.Errorf("ANALYZER_CHUNK_SIZE must be >= 1")
	}
	analyzerMaxWorkers, err := getEnvAsInt("ANALYZER_MAX_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYZER_MAX_WORKERS: %w", err)
	}
	if analyzerMaxWorkers < 1 {
		return Config{}, fmt.Errorf("ANALYZER_MAX_WORKERS must be >= 1")
	}
	analyzerCircuit, err := loadCircuit("ANALYZER")
	if err != nil {
		return Config{}, err
	}

	pprofEnabled, err := getEnvAsBool("PPROF_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := getEnvAsBool("PYROSCOPE_ENABLED", "false")
	if err != nil {
		return Config{}, err
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "gridline-api"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		CORSAllowedOrigins: corsAllowedOrigins,
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),

		SupportedLeagues: supportedLeagues,
		DefaultYear:      defaultYear,

		CacheEnabled: cacheEnabled,
		CacheTTL:     cacheTTL,

		OddsAPIBaseURL:    getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"),
		OddsAPIKey:        oddsAPIKey,
		OddsAPITimeout:    oddsAPITimeout,
		OddsAPIMaxRetries: oddsAPIMaxRetries,
		OddsAPICircuit:    oddsAPICircuit,

		CFBDBaseURL:    getEnv("CFBD_BASE_URL", "https://api.collegefootballdata.com"),
		CFBDTimeout:    cfbdTimeout,
		CFBDMaxRetries: cfbdMaxRetries,
		CFBDCircuit:    cfbdCircuit,

		SidearmEnabled: sidearmEnabled,

		AnalyzerEnabled:    analyzerEnabled,
		AnalyzerBaseURL:    analyzerBaseURL,
		AnalyzerTimeout:    analyzerTimeout,
		AnalyzerChunkSize:  analyzerChunkSize,
		AnalyzerMaxWorkers: analyzerMaxWorkers,
		AnalyzerCircuit:    analyzerCircuit,

		PprofEnabled: pprofEnabled,
		PprofAddr:    pprofAddr,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if cfg.PyroscopeEnabled && cfg.PyroscopeAppName == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}

	return cfg, nil
}

// SupportsLeague reports whether the league value is one the service
// aggregates.
func (c Config) SupportsLeague(league string) bool {
	for _, supported := range c.SupportedLeagues {
		if supported == league {
			return true
		}
	}
	return false
}

// loadCircuit reads the breaker knobs shared by every upstream client,
// prefixed per provider (e.g. CFBD_CIRCUIT_FAILURE_COUNT).
func loadCircuit(prefix string) (resilience.CircuitBreakerConfig, error) {
	enabled, err := getEnvAsBool(prefix+"_CIRCUIT_ENABLED", "true")
	if err != nil {
		return resilience.CircuitBreakerConfig{}, err
	}
	failureCount, err := getEnvAsInt(prefix+"_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_FAILURE_COUNT: %w", prefix, err)
	}
	if failureCount < 1 {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("%s_CIRCUIT_FAILURE_COUNT must be >= 1", prefix)
	}
	openTimeout, err := getEnvAsDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return resilience.CircuitBreakerConfig{}, err
	}
	halfOpenMaxReq, err := getEnvAsInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("parse %s_CIRCUIT_HALF_OPEN_MAX_REQ: %w", prefix, err)
	}
	if halfOpenMaxReq < 1 {
		return resilience.CircuitBreakerConfig{}, fmt.Errorf("%s_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1", prefix)
	}

	return resilience.CircuitBreakerConfig{
		Enabled:          enabled,
		FailureThreshold: failureCount,
		OpenTimeout:      openTimeout,
		HalfOpenMaxReq:   halfOpenMaxReq,
	}, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsBool(key, fallback string) (bool, error) {
	out, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}

	return out, nil
}

func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}

	return out, nil
}
