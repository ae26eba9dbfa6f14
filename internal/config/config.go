package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr             string   `yaml:"http_addr"`
	DatabaseURL          string   `yaml:"database_url"`
	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
	CORSAllowCredentials bool     `yaml:"cors_allow_credentials"`

	JWTSecret string        `yaml:"jwt_secret"`
	JWTTTL    time.Duration `yaml:"jwt_ttl"`
	OTPTTL    time.Duration `yaml:"otp_ttl"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// FeedBatchSize is how many newest public entries feed the tag cloud.
	FeedBatchSize int `yaml:"feed_batch_size"`
	TagCloudSize  int `yaml:"tag_cloud_size"`

	WorkerInterval time.Duration `yaml:"worker_interval"`
}

func Defaults() Config {
	return Config{
		HTTPAddr:       ":8080",
		JWTTTL:         7 * 24 * time.Hour,
		OTPTTL:         5 * time.Minute,
		LogLevel:       "info",
		FeedBatchSize:  200,
		TagCloudSize:   10,
		WorkerInterval: 800 * time.Millisecond,
	}
}

// Load reads .env (if present), then the YAML file named by WHISPER_CONFIG
// (if set), then environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getenv("WHISPER_CONFIG", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	if v := getenv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSAllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				c.CORSAllowedOrigins = append(c.CORSAllowedOrigins, o)
			}
		}
	}

	var errs []error
	boolVar := func(key string, dst *bool) {
		if v := getenv(key, ""); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	intVar := func(key string, dst *int) {
		if v := getenv(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	durVar := func(key string, dst *time.Duration) {
		if v := getenv(key, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	boolVar("CORS_ALLOW_CREDENTIALS", &c.CORSAllowCredentials)
	boolVar("LOG_JSON", &c.LogJSON)
	intVar("FEED_BATCH_SIZE", &c.FeedBatchSize)
	intVar("TAG_CLOUD_SIZE", &c.TagCloudSize)
	durVar("JWT_TTL", &c.JWTTTL)
	durVar("OTP_TTL", &c.OTPTTL)
	durVar("WORKER_INTERVAL", &c.WorkerInterval)

	return errors.Join(errs...)
}

func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	if c.FeedBatchSize <= 0 || c.TagCloudSize <= 0 {
		return errors.New("feed_batch_size and tag_cloud_size must be positive")
	}
	if c.JWTTTL <= 0 || c.OTPTTL <= 0 {
		return errors.New("jwt_ttl and otp_ttl must be positive")
	}
	return nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
