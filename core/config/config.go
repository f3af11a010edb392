package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	AI       AIConfig
	Events   EventsConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	BasePath       string
	TrustedProxies []string
	BasicAuth      []string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

// GatewayConfig configures the Green API client pool.
type GatewayConfig struct {
	BaseURL            string
	ScheduledSweepSecs int
}

type AIConfig struct {
	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	Model           string
}

type EventsConfig struct {
	RabbitURL string
	Queue     string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	storageDir := getEnv("APP_STORAGE_DIR", "storages")

	appCfg := AppConfig{
		Version:     "v1.0.0",
		Port:        getEnv("APP_PORT", "3000"),
		Debug:       getEnvBool("APP_DEBUG", false),
		Environment: getEnv("APP_ENV", "development"),
		BasePath:    getEnv("APP_BASE_PATH", ""),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		appCfg.BasicAuth = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(storageDir, "staywap.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "staywap:"),
	}

	gatewayCfg := GatewayConfig{
		BaseURL:            getEnv("GATEWAY_BASE_URL", "https://api.green-api.com"),
		ScheduledSweepSecs: getEnvInt("GATEWAY_SCHEDULED_SWEEP_SECS", 30),
	}
	if gatewayCfg.ScheduledSweepSecs <= 0 {
		return nil, fmt.Errorf("GATEWAY_SCHEDULED_SWEEP_SECS must be positive")
	}

	aiCfg := AIConfig{
		DeepSeekAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL: getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
		Model:           getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
	}

	eventsCfg := EventsConfig{
		RabbitURL: getEnv("RABBITMQ_URL", ""),
		Queue:     getEnv("RABBITMQ_QUEUE", "staywap_events"),
	}

	cfg := &Config{
		App:      appCfg,
		Database: dbCfg,
		Gateway:  gatewayCfg,
		AI:       aiCfg,
		Events:   eventsCfg,
	}

	Global = cfg
	return cfg, nil
}
