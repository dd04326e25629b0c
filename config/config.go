package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting of the storefront server.
type Config struct {
	Env string `yaml:"env"`

	Log struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		AddSource bool   `yaml:"add_source"`
	} `yaml:"log"`

	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		URL          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
	} `yaml:"database"`

	Redis struct {
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"redis"`

	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`

	Geocoding struct {
		APIKey          string `yaml:"api_key"`
		BatchSize       int    `yaml:"batch_size"`
		Concurrency     int    `yaml:"concurrency"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"geocoding"`

	Search struct {
		DefaultRadiusKm float64 `yaml:"default_radius_km"`
		MaxRadiusKm     float64 `yaml:"max_radius_km"`
	} `yaml:"search"`
}

// Load reads .env (if present), then the YAML file at path (if non-empty), then
// environment overrides, and finally fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

// TTL is the snapshot cache lifetime.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// GeocodingInterval is the pause between geocoding batches.
func (c *Config) GeocodingInterval() time.Duration {
	return time.Duration(c.Geocoding.IntervalSeconds) * time.Second
}

func applyEnv(c *Config) error {
	str := map[string]*string{
		"APP_ENV":             &c.Env,
		"LOG_LEVEL":           &c.Log.Level,
		"LOG_FORMAT":          &c.Log.Format,
		"PORT":                &c.Server.Port,
		"DATABASE_URL":        &c.Database.URL,
		"REDIS_ADDR":          &c.Redis.Addr,
		"REDIS_PASSWORD":      &c.Redis.Password,
		"AMQP_URL":            &c.RabbitMQ.URL,
		"AMQP_QUEUE":          &c.RabbitMQ.Queue,
		"GOOGLE_MAPS_API_KEY": &c.Geocoding.APIKey,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"REDIS_DB":             &c.Redis.DB,
		"REDIS_TTL_SECONDS":    &c.Redis.TTLSeconds,
		"GEOCODING_BATCH_SIZE": &c.Geocoding.BatchSize,
		"GEOCODING_WORKERS":    &c.Geocoding.Concurrency,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	return nil
}

func applyDefaults(c *Config) {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = "local"
	}

	if c.Log.Level == "" {
		if c.Env == "prod" {
			c.Log.Level = "info"
		} else {
			c.Log.Level = "debug"
		}
	}
	if c.Log.Format == "" {
		if c.Env == "prod" {
			c.Log.Format = "json"
		} else {
			c.Log.Format = "text"
		}
	}

	if c.Server.Port == "" {
		c.Server.Port = "3003"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}

	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 60
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "storefront.restaurant_updates"
	}

	if c.Geocoding.BatchSize <= 0 {
		c.Geocoding.BatchSize = 200
	}
	if c.Geocoding.Concurrency <= 0 {
		c.Geocoding.Concurrency = 20
	}
	if c.Geocoding.IntervalSeconds <= 0 {
		c.Geocoding.IntervalSeconds = 30
	}

	if c.Search.DefaultRadiusKm <= 0 {
		c.Search.DefaultRadiusKm = 50
	}
	if c.Search.MaxRadiusKm <= 0 {
		c.Search.MaxRadiusKm = 100
	}
	if c.Search.DefaultRadiusKm > c.Search.MaxRadiusKm {
		c.Search.DefaultRadiusKm = c.Search.MaxRadiusKm
	}
}
