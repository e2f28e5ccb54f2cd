package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the timeline service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	LogLevel           string
	DatabaseURL        string
	DatabaseMaxConns   int
	RedisURL           string
	NATSURL            string
	EventsChannel      string
	JWTSecret          string
	TimelineCacheTTL   time.Duration
	StoreTimeout       time.Duration
	IncludeAttendances bool
	RateLimitMax       int
	RateLimitWindow    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HYFER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Hyfer Timeline API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3005")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("events.channel", "hyfer:timeline")
	v.SetDefault("timeline.cache_ttl", "2m")
	v.SetDefault("timeline.store_timeout", "10s")
	// History stays off until attendance tracking ships in the frontend.
	v.SetDefault("timeline.include_attendances", false)
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")

	ttl, err := parseDuration(v, "timeline.cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeline cache ttl: %w", err)
	}

	storeTimeout, err := parseDuration(v, "timeline.store_timeout", 10*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeline store timeout: %w", err)
	}

	window, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		DatabaseURL:        v.GetString("database.url"),
		DatabaseMaxConns:   v.GetInt("database.max_conns"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventsChannel:      v.GetString("events.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		TimelineCacheTTL:   ttl,
		StoreTimeout:       storeTimeout,
		IncludeAttendances: v.GetBool("timeline.include_attendances"),
		RateLimitMax:       v.GetInt("rate_limit.max"),
		RateLimitWindow:    window,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseMaxConns <= 0 {
		cfg.DatabaseMaxConns = 10
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 60
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
