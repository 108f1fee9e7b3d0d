package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"proxy-checker/internal/endpoint"
)

var Module = fx.Options(
	fx.Provide(NewConfig),
)

var validate = validator.New()

// Path points at the configuration file. Empty means CONFIG_PATH, then
// config.json in the working directory.
type Path string

type Config struct {
	Server    Server           `mapstructure:"server" json:"server" validate:"required"`
	Checker   Checker          `mapstructure:"checker" json:"checker" validate:"required"`
	GeoIP     GeoIP            `mapstructure:"geoip" json:"geoip"`
	Storage   Storage          `mapstructure:"storage" json:"storage" validate:"required"`
	Scheduler Scheduler        `mapstructure:"scheduler" json:"scheduler"`
	Exporters []ExporterConfig `mapstructure:"exporters" json:"exporters" validate:"dive"`
}

type Server struct {
	Listen                 string `mapstructure:"listen" json:"listen" validate:"required,listenaddr"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds" validate:"min=1"`
}

type Checker struct {
	TestURL            string `mapstructure:"test_url" json:"test_url" validate:"required,url"`
	UserAgent          string `mapstructure:"user_agent" json:"user_agent" validate:"required"`
	DefaultTimeoutMs   int    `mapstructure:"default_timeout_ms" json:"default_timeout_ms" validate:"min=1000,max=30000"`
	DefaultConcurrency int    `mapstructure:"default_concurrency" json:"default_concurrency" validate:"min=1,max=50"`
	MaxBatchSize       int    `mapstructure:"max_batch_size" json:"max_batch_size" validate:"min=1,max=10000"`
}

type GeoIP struct {
	Enabled             bool   `mapstructure:"enabled" json:"enabled"`
	PrimaryURL          string `mapstructure:"primary_url" json:"primary_url" validate:"omitempty,url"`
	FallbackURL         string `mapstructure:"fallback_url" json:"fallback_url" validate:"omitempty,url"`
	FallbackToken       string `mapstructure:"fallback_token" json:"fallback_token"`
	TimeoutMs           int    `mapstructure:"timeout_ms" json:"timeout_ms" validate:"min=100"`
	CacheTTLSeconds     int    `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds" validate:"min=1"`
	SweepIntervalSecond int    `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds" validate:"min=1"`
}

type Storage struct {
	Driver    string `mapstructure:"driver" json:"driver" validate:"required,oneof=postgres sqlite3"`
	DSN       string `mapstructure:"dsn" json:"dsn" validate:"required"`
	BatchSize int    `mapstructure:"batch_size" json:"batch_size" validate:"min=1,max=1000"`
}

type Scheduler struct {
	IntervalSeconds int      `mapstructure:"interval_seconds" json:"interval_seconds" validate:"min=0"`
	UserID          string   `mapstructure:"user_id" json:"user_id"`
	Proxies         []string `mapstructure:"proxies" json:"proxies" validate:"dive,proxyaddr"`
	IncludeGeoIP    bool     `mapstructure:"include_geoip" json:"include_geoip"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "0.0.0.0:8080")
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	v.SetDefault("checker.test_url", "http://httpbin.org/ip")
	v.SetDefault("checker.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("checker.default_timeout_ms", 5000)
	v.SetDefault("checker.default_concurrency", 10)
	v.SetDefault("checker.max_batch_size", 1000)

	v.SetDefault("geoip.enabled", true)
	v.SetDefault("geoip.primary_url", "http://ip-api.com/json/")
	v.SetDefault("geoip.fallback_url", "https://ipinfo.io/")
	v.SetDefault("geoip.timeout_ms", 3000)
	v.SetDefault("geoip.cache_ttl_seconds", 86400)
	v.SetDefault("geoip.sweep_interval_seconds", 600)

	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.dsn", "file:proxy-checker.db?cache=shared")
	v.SetDefault("storage.batch_size", 100)

	v.SetDefault("scheduler.interval_seconds", 0)
	v.SetDefault("scheduler.user_id", "scheduler")
	v.SetDefault("scheduler.include_geoip", true)
}

// NewConfig loads the configuration file, applies PROXY_CHECKER_* environment
// overrides and validates the result.
func NewConfig(path Path) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PROXY_CHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := string(path)
	explicit := configPath != ""
	if !explicit {
		configPath = os.Getenv("CONFIG_PATH")
		explicit = configPath != ""
	}
	if configPath == "" {
		configPath = "config.json"
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		// A missing default file means "run on defaults"; a missing explicit one is an error.
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks a configuration built in code or loaded from disk.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func init() {
	if err := validate.RegisterValidation("proxyaddr", validateProxyAddr); err != nil {
		panic(fmt.Sprintf("failed to register proxyaddr validator: %v", err))
	}
	if err := validate.RegisterValidation("listenaddr", validateListenAddr); err != nil {
		panic(fmt.Sprintf("failed to register listenaddr validator: %v", err))
	}
}

// validateListenAddr accepts host:port with an empty host and port 0,
// which asks the kernel for a free port.
func validateListenAddr(fl validator.FieldLevel) bool {
	_, portStr, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	port, err := strconv.Atoi(portStr)
	return err == nil && port >= 0 && port <= 65535
}

func validateProxyAddr(fl validator.FieldLevel) bool {
	_, err := endpoint.Parse(fl.Field().String())
	return err == nil
}

// formatValidationErrors formats validation errors into a user-friendly error message
func formatValidationErrors(errors validator.ValidationErrors) error {
	var errMsgs []string
	for _, err := range errors {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"field '%s' failed validation: %s",
			err.Namespace(),
			err.Tag(),
		))
	}
	return fmt.Errorf("validation errors: %v", errMsgs)
}
