package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/LJTian/ToramListener/internal/storage"
	"gopkg.in/yaml.v3"
)

// 配置校验错误
var (
	ErrMissingWebhookURL  = errors.New("webhook_url is required")
	ErrInvalidWebhookURL  = errors.New("webhook_url must be an http(s) url")
	ErrInvalidListingURL  = errors.New("listing_url must be an http(s) url")
	ErrInvalidDetailURL   = errors.New("detail_url_template must contain {id}")
	ErrInvalidInterval    = errors.New("poll_interval must be at least 1s")
	ErrInvalidTimeout     = errors.New("http_timeout must be between 1s and 5m")
	ErrInvalidTimezone    = errors.New("timezone is not a known location")
	ErrInvalidBackend     = errors.New("watermark_backend must be one of: redis, postgres, memory")
	ErrMissingRedisAddr   = errors.New("redis_addr is required for the redis backend")
	ErrMissingPostgresDSN = errors.New("postgres_dsn is required for the postgres backend")
	ErrMissingKey         = errors.New("watermark_collection and watermark_key must not be empty")
	ErrInvalidPort        = errors.New("port must be between 1 and 65535")
	ErrInvalidStatus      = errors.New("webhook_success_status must be a 2xx code")
	ErrInvalidLogLevel    = errors.New("log_level must be one of: debug, info, warn, error")
)

type Config struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	ListingURL        string        `yaml:"listing_url"`
	DetailURLTemplate string        `yaml:"detail_url_template"`
	Timezone          string        `yaml:"timezone"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`

	WatermarkBackend    string `yaml:"watermark_backend"`
	RedisAddr           string `yaml:"redis_addr"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	WatermarkCollection string `yaml:"watermark_collection"`
	WatermarkKey        string `yaml:"watermark_key"`

	WebhookURL           string `yaml:"webhook_url"`
	WebhookSuccessStatus int    `yaml:"webhook_success_status"`

	// 与投递循环无关的探活服务
	HTTPServer bool   `yaml:"http_server"`
	Hostname   string `yaml:"hostname"`
	Port       int    `yaml:"port"`

	LogLevel string `yaml:"log_level"`

	location *time.Location
}

func Default() *Config {
	return &Config{
		PollInterval:         5 * time.Minute,
		ListingURL:           collector.DefaultListingURL,
		DetailURLTemplate:    collector.DefaultDetailURLTemplate,
		Timezone:             "Local",
		HTTPTimeout:          30 * time.Second,
		WatermarkBackend:     storage.BackendRedis,
		RedisAddr:            "localhost:6379",
		WatermarkCollection:  storage.DefaultCollection,
		WatermarkKey:         storage.DefaultKey,
		WebhookSuccessStatus: 200,
		Hostname:             "0.0.0.0",
		Port:                 8080,
		LogLevel:             "info",
	}
}

// Load 默认值 → CONFIG_FILE 指向的 yaml（可选）→ 环境变量，最后校验
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("config loaded",
		"interval", cfg.PollInterval.String(),
		"backend", cfg.WatermarkBackend,
		"timezone", cfg.Timezone,
		"http_server", cfg.HTTPServer,
	)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.PollInterval, err = getEnvDuration("POLL_INTERVAL", c.PollInterval); err != nil {
		return err
	}
	if c.HTTPTimeout, err = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.WebhookSuccessStatus, err = getEnvInt("WEBHOOK_SUCCESS_STATUS", c.WebhookSuccessStatus); err != nil {
		return err
	}
	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		return err
	}
	if c.HTTPServer, err = getEnvBool("HTTP_SERVER", c.HTTPServer); err != nil {
		return err
	}

	c.ListingURL = getEnv("LISTING_URL", c.ListingURL)
	c.DetailURLTemplate = getEnv("DETAIL_URL_TEMPLATE", c.DetailURLTemplate)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.WatermarkBackend = getEnv("WATERMARK_BACKEND", c.WatermarkBackend)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.WatermarkCollection = getEnv("WATERMARK_COLLECTION", c.WatermarkCollection)
	c.WatermarkKey = getEnv("WATERMARK_KEY", c.WatermarkKey)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.Hostname = getEnv("HTTP_HOST", c.Hostname)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate 任何一项不合法都返回对应的错误，启动流程据此退出
func (c *Config) Validate() error {
	if c.WebhookURL == "" {
		return ErrMissingWebhookURL
	}
	if !isHTTPURL(c.WebhookURL) {
		return ErrInvalidWebhookURL
	}
	if !isHTTPURL(c.ListingURL) {
		return ErrInvalidListingURL
	}
	if !strings.Contains(c.DetailURLTemplate, "{id}") || !isHTTPURL(c.DetailURLTemplate) {
		return ErrInvalidDetailURL
	}
	if c.PollInterval < time.Second {
		return ErrInvalidInterval
	}
	if c.HTTPTimeout < time.Second || c.HTTPTimeout > 5*time.Minute {
		return ErrInvalidTimeout
	}
	if c.WebhookSuccessStatus < 200 || c.WebhookSuccessStatus > 299 {
		return ErrInvalidStatus
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	c.location = loc

	switch c.WatermarkBackend {
	case storage.BackendRedis:
		if c.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	case storage.BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrMissingPostgresDSN
		}
	case storage.BackendMemory:
	default:
		return ErrInvalidBackend
	}
	if c.WatermarkCollection == "" || c.WatermarkKey == "" {
		return ErrMissingKey
	}

	if c.HTTPServer && (c.Port < 1 || c.Port > 65535) {
		return ErrInvalidPort
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// Location 校验之后才有值
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Addr 探活服务监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

// StorageOptions 转成存储层参数
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:     c.WatermarkBackend,
		RedisAddr:   c.RedisAddr,
		PostgresDSN: c.PostgresDSN,
		Collection:  c.WatermarkCollection,
		Key:         c.WatermarkKey,
	}
}

// SlogLevel 日志级别
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.ReplaceAll(raw, "{id}", "0"))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// 兼容只写秒数
		if secs, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(secs) * time.Second, nil
		}
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
