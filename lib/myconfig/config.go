package myconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`

	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
	DatabaseURL        string `env:"DATABASE_URL"`

	Stripe StripeConfig `envPrefix:"STRIPE_"`
	SMTP   SMTPConfig   `envPrefix:"SMTP_"`
}

type StripeConfig struct {
	// Empty secret key means mock mode: no gateway calls and no persistence.
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"usd"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
}

// Load reads optional .env files into the environment and parses it.
// Variables already present in the environment take precedence over the files.
func Load(envFiles ...string) (Config, error) {
	err := godotenv.Load(envFiles...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading env-file: %w", err)
	}

	cfg := Config{}
	err = env.Parse(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	return cfg, nil
}
