package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	JWTRefreshSecret   string
	StatsCacheTTL      time.Duration
	TimerGracePeriod   time.Duration
	TimerSweepInterval time.Duration
	EventsChannel      string
	CORSAllowOrigins   string
	AnswerRateLimit    int
	SeedEnabled        bool
	SeedToken          string
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
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Assessment API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("timer.grace_period", "0s")
	v.SetDefault("timer.sweep_interval", "30s")
	v.SetDefault("events.channel", "gema:assessments")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("rate_limit.answers_per_minute", 60)
	v.SetDefault("seed.enabled", false)

	ttl, err := parseDuration(v, "stats.cache_ttl", "5m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	grace, err := parseDuration(v, "timer.grace_period", "0s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid timer grace period: %w", err)
	}
	if grace < 0 {
		return Config{}, fmt.Errorf("timer grace period must not be negative")
	}

	sweep, err := parseDuration(v, "timer.sweep_interval", "30s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid timer sweep interval: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		JWTRefreshSecret:   v.GetString("jwt.refresh_secret"),
		StatsCacheTTL:      ttl,
		TimerGracePeriod:   grace,
		TimerSweepInterval: sweep,
		EventsChannel:      v.GetString("events.channel"),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
		AnswerRateLimit:    v.GetInt("rate_limit.answers_per_minute"),
		SeedEnabled:        v.GetBool("seed.enabled"),
		SeedToken:          v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}
	if cfg.SeedEnabled && cfg.SeedToken == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
