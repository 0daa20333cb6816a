package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries all runtime settings, populated from the environment.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseDSN string `envconfig:"DB_DSN" required:"true"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"platform.events"`

	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`

	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads a local .env file when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
