package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	MigrationsDir  string   `mapstructure:"MIGRATIONS_DIR"`

	// Engine tunables. These are starting points for the calibration
	// system, not hard constants.
	ReferenceWeightKG float64 `mapstructure:"REFERENCE_WEIGHT_KG"`
	RoundingStepMME   float64 `mapstructure:"ROUNDING_STEP_MME"`
	TargetVAS         float64 `mapstructure:"TARGET_VAS"`
	ProbeFactor       float64 `mapstructure:"DOSE_PROBE_FACTOR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("REFERENCE_WEIGHT_KG", 75.0)
	v.SetDefault("ROUNDING_STEP_MME", 0.25)
	v.SetDefault("TARGET_VAS", 3.0)
	v.SetDefault("DOSE_PROBE_FACTOR", 0.97)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("REFERENCE_WEIGHT_KG")
	v.BindEnv("ROUNDING_STEP_MME")
	v.BindEnv("TARGET_VAS")
	v.BindEnv("DOSE_PROBE_FACTOR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is required so that real authentication is enforced, and the
// engine tunables must be in their sane ranges.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is not \"development\"")
	}
	if c.ReferenceWeightKG <= 0 {
		return fmt.Errorf("REFERENCE_WEIGHT_KG must be positive, got %v", c.ReferenceWeightKG)
	}
	if c.RoundingStepMME <= 0 {
		return fmt.Errorf("ROUNDING_STEP_MME must be positive, got %v", c.RoundingStepMME)
	}
	if c.TargetVAS < 0 || c.TargetVAS > 10 {
		return fmt.Errorf("TARGET_VAS must be in [0,10], got %v", c.TargetVAS)
	}
	if c.ProbeFactor <= 0 || c.ProbeFactor > 1 {
		return fmt.Errorf("DOSE_PROBE_FACTOR must be in (0,1], got %v", c.ProbeFactor)
	}
	return nil
}
