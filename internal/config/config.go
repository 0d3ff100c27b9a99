package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration, loaded once at startup.
type Config struct {
	ServerPort   int    `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./accounts.db"`

	// JWTSecret signs session tokens. The service refuses to start without it.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// OTPPruneSchedule is a cron spec for sweeping expired OTP entries.
	OTPPruneSchedule string `env:"OTP_PRUNE_SCHEDULE" envDefault:"@every 5m"`

	SMTP SMTPConfig `envPrefix:"SMTP_"`
}

// SMTPConfig configures the outbound mail transport. When Host is empty the
// service falls back to logging OTP mail instead of sending it.
type SMTPConfig struct {
	Host     string        `env:"HOST"`
	Port     int           `env:"PORT" envDefault:"587"`
	Username string        `env:"USERNAME"`
	Password string        `env:"PASSWORD"`
	From     string        `env:"FROM"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
