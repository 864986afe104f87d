package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		// Relay fans broadcasts out through Redis pub/sub so several instances can serve one session.
		Relay bool `yaml:"relay"`
	} `yaml:"redis"`
	Postgres struct {
		URL         string `yaml:"url"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		AllocationAttempts int    `yaml:"allocation_attempts"`
		InsertAttempts     int    `yaml:"insert_attempts"`
		InsertBackoff      string `yaml:"insert_backoff"`
		StoreTimeout       string `yaml:"store_timeout"`
		StoreRetries       int    `yaml:"store_retries"`
		StoreBackoff       string `yaml:"store_backoff"`
		Retention          string `yaml:"retention"`
		CleanupInterval    string `yaml:"cleanup_interval"`
	} `yaml:"session"`
	Auth struct {
		JWTSecret string   `yaml:"jwt_secret"`
		Issuer    string   `yaml:"issuer"`
		Admins    []string `yaml:"admins"`
		// TrustHeader accepts X-User-ID from an authenticating gateway when no token is sent.
		// Enable it only when clients cannot reach the service except through that gateway.
		TrustHeader bool `yaml:"trust_header"`
	} `yaml:"auth"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"rabbitmq"`
	CORS struct {
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"cors"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Redis.TTL = "24h"
	cfg.Quiz.TTL = "10m"
	cfg.Session.AllocationAttempts = 10
	cfg.Session.InsertAttempts = 5
	cfg.Session.InsertBackoff = "20ms"
	cfg.Session.StoreTimeout = "2s"
	cfg.Session.StoreRetries = 3
	cfg.Session.StoreBackoff = "25ms"
	cfg.Session.Retention = "48h"
	cfg.Session.CleanupInterval = "24h"
	cfg.RabbitMQ.Exchange = "quiz.sessions"
	cfg.CORS.AllowOrigins = []string{"*"}
	return cfg
}

// Load reads YAML config from path on top of Default. ${VAR} references are expanded from the
// environment before parsing. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
