// Package config loads process configuration from defaults, an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"solarfarm-cloud/internal/farm/generator"
)

// EnvConfigPath names the optional YAML config file.
const EnvConfigPath = "SOLARFARM_CONFIG"

// Farm mirrors generator.Config with yaml keys.
type Farm struct {
	TotalPanels    int     `yaml:"total_panels"`
	AreaSizeKm     float64 `yaml:"area_size_km"`
	SectorsPerSide int     `yaml:"sectors_per_side"`
	BaseLat        float64 `yaml:"base_lat"`
	BaseLng        float64 `yaml:"base_lng"`
}

// Generator converts to the generator input.
func (f Farm) Generator() generator.Config {
	return generator.Config{
		TotalPanels:    f.TotalPanels,
		AreaSizeKm:     f.AreaSizeKm,
		SectorsPerSide: f.SectorsPerSide,
		BaseLat:        f.BaseLat,
		BaseLng:        f.BaseLng,
	}
}

// AutoClean configures the automatic cleaning scheduler.
type AutoClean struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	ScoreThreshold float64       `yaml:"score_threshold"`
}

// Prediction configures cleaning prediction.
type Prediction struct {
	UseLastCleaned bool `yaml:"use_last_cleaned"`
}

// Auth configures optional JWT auth.
type Auth struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// AlertNotify configures the outbound alert webhook. An empty URL disables it.
type AlertNotify struct {
	WebhookURL  string        `yaml:"webhook_url"`
	MinSeverity string        `yaml:"min_severity"`
	Cooldown    time.Duration `yaml:"cooldown"`
	Template    string        `yaml:"template"`
}

// Config is the full process configuration.
type Config struct {
	HTTPAddr         string        `yaml:"http_addr"`
	DatabaseURL      string        `yaml:"database_url"`
	Seed             uint64        `yaml:"seed"`
	TickPeriod       time.Duration `yaml:"tick_period"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	StreamBuffer     int           `yaml:"stream_buffer"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	Farm             Farm          `yaml:"farm"`
	AutoClean        AutoClean     `yaml:"auto_clean"`
	Prediction       Prediction    `yaml:"prediction"`
	Auth             Auth          `yaml:"auth"`
	AlertNotify      AlertNotify   `yaml:"alert_notify"`
}

// Default returns the built-in configuration.
func Default() Config {
	gen := generator.DefaultConfig()
	return Config{
		HTTPAddr:         ":8000",
		TickPeriod:       3 * time.Second,
		SnapshotInterval: 5 * time.Minute,
		StreamBuffer:     4,
		AllowedOrigins:   []string{"http://localhost:3000"},
		Farm: Farm{
			TotalPanels:    gen.TotalPanels,
			AreaSizeKm:     gen.AreaSizeKm,
			SectorsPerSide: gen.SectorsPerSide,
			BaseLat:        gen.BaseLat,
			BaseLng:        gen.BaseLng,
		},
		AutoClean: AutoClean{
			Interval:       10 * time.Minute,
			ScoreThreshold: 0.5,
		},
		AlertNotify: AlertNotify{
			MinSeverity: "medium",
			Cooldown:    30 * time.Minute,
		},
	}
}

// Load applies defaults, then the YAML file named by SOLARFARM_CONFIG, then env overrides.
func Load() (Config, error) {
	return LoadFrom(os.Getenv(EnvConfigPath))
}

// LoadFrom is Load with an explicit file path; an empty path skips the file.
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.Seed = getenvUintDefault("SOLARFARM_SEED", cfg.Seed)
	cfg.TickPeriod = getenvDuration("TICK_PERIOD", cfg.TickPeriod)
	cfg.SnapshotInterval = getenvDuration("SNAPSHOT_INTERVAL", cfg.SnapshotInterval)
	cfg.StreamBuffer = getenvIntDefault("STREAM_BUFFER", cfg.StreamBuffer)
	if origins := splitCSV(os.Getenv("ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	cfg.Farm.TotalPanels = getenvIntDefault("FARM_TOTAL_PANELS", cfg.Farm.TotalPanels)
	cfg.Farm.AreaSizeKm = getenvFloatDefault("FARM_AREA_SIZE_KM", cfg.Farm.AreaSizeKm)
	cfg.Farm.SectorsPerSide = getenvIntDefault("FARM_SECTORS_PER_SIDE", cfg.Farm.SectorsPerSide)
	cfg.Farm.BaseLat = getenvFloatDefault("FARM_BASE_LAT", cfg.Farm.BaseLat)
	cfg.Farm.BaseLng = getenvFloatDefault("FARM_BASE_LNG", cfg.Farm.BaseLng)
	cfg.AutoClean.Enabled = getenvBoolDefault("AUTO_CLEAN_ENABLED", cfg.AutoClean.Enabled)
	cfg.AutoClean.Interval = getenvDuration("AUTO_CLEAN_INTERVAL", cfg.AutoClean.Interval)
	cfg.AutoClean.ScoreThreshold = getenvFloatDefault("AUTO_CLEAN_SCORE_THRESHOLD", cfg.AutoClean.ScoreThreshold)
	cfg.Prediction.UseLastCleaned = getenvBoolDefault("PREDICTION_USE_LAST_CLEANED", cfg.Prediction.UseLastCleaned)
	cfg.Auth.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.Auth.JWTSecret))
	cfg.AlertNotify.WebhookURL = getenvDefault("ALERT_WEBHOOK_URL", cfg.AlertNotify.WebhookURL)
	cfg.AlertNotify.MinSeverity = getenvDefault("ALERT_MIN_SEVERITY", cfg.AlertNotify.MinSeverity)
	cfg.AlertNotify.Cooldown = getenvDuration("ALERT_NOTIFY_COOLDOWN", cfg.AlertNotify.Cooldown)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects non-positive periods and bad farm geometry.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	if c.TickPeriod <= 0 {
		return errors.New("config: tick period must be positive")
	}
	if c.SnapshotInterval <= 0 {
		return errors.New("config: snapshot interval must be positive")
	}
	if c.AutoClean.Enabled && c.AutoClean.Interval <= 0 {
		return errors.New("config: auto clean interval must be positive")
	}
	if c.StreamBuffer <= 0 {
		return errors.New("config: stream buffer must be positive")
	}
	switch c.AlertNotify.MinSeverity {
	case "", "low", "medium", "high":
	default:
		return fmt.Errorf("config: unknown alert min severity %q", c.AlertNotify.MinSeverity)
	}
	if err := c.Farm.Generator().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvUintDefault(key string, fallback uint64) uint64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
