package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the coordination server.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	BasePath         string
	DatabaseURL      string
	ConnectAttempts  int
	ConnectBaseDelay time.Duration
	RedisURL         string
	ShutdownTimeout  time.Duration
}

// HTTPAddress returns the address the server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// SliderValuesPath returns the submission route derived from the base path.
func (c Config) SliderValuesPath() string {
	return c.BasePath + "/slider-values"
}

// Load reads configuration values from environment variables and an optional
// .env file. An empty database URL is valid: the server then starts without
// persistence and submission requests are refused with 503.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MAQUETTE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Maquette API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("base.path", "/replacement-model")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.connect_base_delay_ms", 1000)
	v.SetDefault("shutdown_timeout_ms", 5000)

	basePath, err := normalizeBasePath(v.GetString("base.path"))
	if err != nil {
		return Config{}, err
	}

	attempts := v.GetInt("database.connect_attempts")
	if attempts < 1 {
		attempts = 1
	}

	baseDelayMs := v.GetInt("database.connect_base_delay_ms")
	if baseDelayMs < 0 {
		baseDelayMs = 1000
	}

	shutdownMs := v.GetInt("shutdown_timeout_ms")
	if shutdownMs <= 0 {
		shutdownMs = 5000
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		BasePath:         basePath,
		DatabaseURL:      v.GetString("database.url"),
		ConnectAttempts:  attempts,
		ConnectBaseDelay: time.Duration(baseDelayMs) * time.Millisecond,
		RedisURL:         v.GetString("redis.url"),
		ShutdownTimeout:  time.Duration(shutdownMs) * time.Millisecond,
	}

	return cfg, nil
}

func normalizeBasePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "", fmt.Errorf("base path must not be empty or root")
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path, nil
}
