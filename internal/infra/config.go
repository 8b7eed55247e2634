package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Ledger drivers.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerSQLite   = "sqlite"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	LogLevel          string
	DefaultLocale     string
	Port              string
	PublicBaseURL     string
	GenerationAPIURL  string
	GenerationTimeout time.Duration
	PayPalAPIURL      string
	ProxyBaseURL      string
	UnlockPriceCents  int64
	UnlockCurrency    string
	LedgerDriver      string
	DatabaseURL       string
	DatabaseMaxConns  int32
	SQLitePath        string
	RedisAddr         string
	RedisUsername     string
	RedisPassword     string
	RedisDB           int
	RedisTLS          bool
	ProxyCacheTTL     time.Duration
	ProxyMaxBytes     int64
	ProxyAllowPrivate bool
	StoragePath       string
	JWTSecret         string
	GeoIPDBPath       string
	// ImageSourceAllowlist holds the hosts the image proxy may read from. It
	// always includes the generation API host.
	ImageSourceAllowlist []string
	CORSAllowedOrigins   []string
	HTTPReadTimeout      time.Duration
	HTTPWriteTimeout     time.Duration
	HTTPIdleTimeout      time.Duration
	ShutdownTimeout      time.Duration
	RateLimitPerMin      int
	WidgetIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	publicBaseURL := strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		DefaultLocale:      strings.ToLower(getEnv("DEFAULT_LOCALE", "en")),
		LogLevel:           strings.ToLower(os.Getenv("LOG_LEVEL")),
		Port:               port,
		PublicBaseURL:      publicBaseURL,
		GenerationAPIURL:   strings.TrimRight(getEnv("GENERATION_API_URL", "http://localhost:3000"), "/"),
		GenerationTimeout:  time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 120)),
		ProxyBaseURL:       strings.TrimRight(getEnv("PROXY_BASE_URL", publicBaseURL), "/"),
		UnlockPriceCents:   int64(getEnvInt("UNLOCK_PRICE_CENTS", 80)),
		UnlockCurrency:     strings.ToUpper(getEnv("UNLOCK_CURRENCY", "USD")),
		LedgerDriver:       strings.ToLower(getEnv("LEDGER_DRIVER", LedgerMemory)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:   int32(getEnvInt("DATABASE_MAX_CONNS", 4)),
		SQLitePath:         getEnv("SQLITE_PATH", "data/unlocks.db"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisUsername:      os.Getenv("REDIS_USERNAME"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLS:           getEnvBool("REDIS_TLS", false),
		ProxyCacheTTL:      time.Second * time.Duration(getEnvInt("PROXY_CACHE_TTL_SECONDS", 3600)),
		ProxyMaxBytes:      int64(getEnvInt("PROXY_MAX_BYTES", 20<<20)),
		ProxyAllowPrivate:  getEnvBool("PROXY_ALLOW_PRIVATE", false),
		StoragePath:        getEnv("STORAGE_PATH", "data/cache"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownTimeout:    time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		WidgetIdleTimeout:  time.Minute * time.Duration(getEnvInt("WIDGET_IDLE_MINUTES", 60)),
	}
	cfg.PayPalAPIURL = strings.TrimRight(getEnv("PAYPAL_API_URL", cfg.GenerationAPIURL), "/")
	cfg.ImageSourceAllowlist = buildAllowlist(cfg.GenerationAPIURL, os.Getenv("IMAGE_SOURCE_HOST_ALLOWLIST"))

	if cfg.UnlockPriceCents <= 0 {
		return nil, fmt.Errorf("UNLOCK_PRICE_CENTS must be positive")
	}
	if cfg.DatabaseMaxConns <= 0 {
		cfg.DatabaseMaxConns = 4
	}
	if cfg.GenerationTimeout <= 0 {
		return nil, fmt.Errorf("GENERATION_TIMEOUT_SECONDS must be positive")
	}
	switch cfg.LedgerDriver {
	case LedgerMemory, LedgerSQLite:
	case LedgerPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
	default:
		return nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}

	return cfg, nil
}

func buildAllowlist(generationURL, extra string) []string {
	set := map[string]struct{}{}
	if u, err := url.Parse(generationURL); err == nil && u.Hostname() != "" {
		set[strings.ToLower(u.Hostname())] = struct{}{}
	}
	for _, host := range splitList(extra) {
		set[strings.ToLower(host)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for host := range set {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
