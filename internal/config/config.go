package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Export   ExportConfig
	Plan     PlanConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	SchemaPath  string
	Timeout     time.Duration
}

type ExportConfig struct {
	NarrativeWorkers int
	PreviewTTL       time.Duration
	FilenamePrefix   string
	Timeout          time.Duration
}

type PlanConfig struct {
	Year          int
	SeedFile      string
	VATRate       float64
	NarrativeSeed uint64
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "localhost", parseString),
			Port:            getEnv("SERVER_PORT", 8084, strconv.Atoi),
			ReadTimeout:     getEnv("SERVER_READ_TIMEOUT", 10*time.Second, time.ParseDuration),
			WriteTimeout:    getEnv("SERVER_WRITE_TIMEOUT", 90*time.Second, time.ParseDuration),
			IdleTimeout:     getEnv("SERVER_IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
			ShutdownTimeout: getEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second, time.ParseDuration),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", "memory", parseString)),
			DatabaseURL: getEnv("DATABASE_URL", "", parseString),
			SQLitePath:  getEnv("SQLITE_PATH", "salesplan.db", parseString),
			SchemaPath:  getEnv("SCHEMA_PATH", "", parseString),
			Timeout:     getEnv("STORE_TIMEOUT", 15*time.Second, time.ParseDuration),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info", parseString),
			Format: getEnv("LOG_FORMAT", "json", parseString),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnv("SECURITY_RATE_LIMIT_ENABLED", true, strconv.ParseBool),
			RateLimitRPS:    getEnv("SECURITY_RATE_LIMIT_RPS", 100, strconv.Atoi),
			RateLimitBurst:  getEnv("SECURITY_RATE_LIMIT_BURST", 10, strconv.Atoi),
			AllowedOrigins:  getEnv("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}, parseList),
			TrustedProxies:  getEnv("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}, parseList),
		},
		Export: ExportConfig{
			NarrativeWorkers: getEnv("EXPORT_NARRATIVE_WORKERS", 4, strconv.Atoi),
			PreviewTTL:       getEnv("EXPORT_PREVIEW_TTL", 15*time.Minute, time.ParseDuration),
			FilenamePrefix:   getEnv("EXPORT_FILENAME_PREFIX", "sales-plan-report", parseString),
			Timeout:          getEnv("EXPORT_TIMEOUT", 60*time.Second, time.ParseDuration),
		},
		Plan: PlanConfig{
			Year:          getEnv("PLAN_YEAR", time.Now().Year(), strconv.Atoi),
			SeedFile:      getEnv("PLAN_SEED_FILE", "", parseString),
			VATRate:       getEnv("PLAN_VAT_RATE", 18.0, parseFloat),
			NarrativeSeed: getEnv("NARRATIVE_SEED", uint64(2026), parseUint),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var (
	storeDrivers = []string{"memory", "sqlite", "postgres"}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"json", "text"}
)

// validate reports every problem at once.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port >= 1 && c.Server.Port <= 65535, "server port must be between 1 and 65535, got %d", c.Server.Port)
	check(c.Server.ReadTimeout > 0, "server read timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server write timeout must be positive")
	check(c.Server.WriteTimeout > c.Export.Timeout, "server write timeout (%s) must exceed the export timeout (%s)", c.Server.WriteTimeout, c.Export.Timeout)

	check(slices.Contains(storeDrivers, c.Store.Driver), "invalid store driver %q, must be one of: %s", c.Store.Driver, strings.Join(storeDrivers, ", "))
	check(c.Store.Driver != "postgres" || c.Store.DatabaseURL != "", "DATABASE_URL is required for the postgres store")
	check(c.Store.Driver != "sqlite" || c.Store.SQLitePath != "", "SQLITE_PATH cannot be empty for the sqlite store")

	check(slices.Contains(logLevels, c.Logger.Level), "invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(logLevels, ", "))
	check(slices.Contains(logFormats, c.Logger.Format), "invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(logFormats, ", "))

	check(c.Security.RateLimitRPS > 0, "rate limit RPS must be positive")
	check(c.Security.RateLimitBurst > 0, "rate limit burst must be positive")

	check(c.Export.NarrativeWorkers >= 1, "narrative workers must be at least 1")
	check(c.Export.Timeout > 0, "export timeout must be positive")
	check(c.Export.PreviewTTL > 0, "preview TTL must be positive")

	check(c.Plan.Year >= 2000 && c.Plan.Year <= 2100, "plan year %d out of range", c.Plan.Year)
	check(c.Plan.VATRate >= 0, "VAT rate cannot be negative")

	return errors.Join(errs...)
}

// getEnv returns the parsed value of key, or def when it is unset or does not parse.
func getEnv[T any](key string, def T, parse func(string) (T, error)) T {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	v, err := parse(value)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func parseList(s string) ([]string, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// LogValue keeps credentials out of the startup log.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.Address()),
		slog.String("store_driver", c.Store.Driver),
		slog.Bool("database_url_set", c.Store.DatabaseURL != ""),
		slog.String("log_level", c.Logger.Level),
		slog.Int("plan_year", c.Plan.Year),
		slog.Float64("vat_rate", c.Plan.VATRate),
		slog.Int("narrative_workers", c.Export.NarrativeWorkers),
	)
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
