package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"kaskelas"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"kaskelas"`
	}

	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
		Password string `envconfig:"REDIS_PASSWORD" default:""`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	WhatsApp struct {
		BaseURL string        `envconfig:"WHATSAPP_API_URL" default:"https://api.dripsender.id"`
		APIKey  string        `envconfig:"WHATSAPP_API_KEY"`
		Timeout time.Duration `envconfig:"WHATSAPP_TIMEOUT" default:"30s"`
	}

	Payment struct {
		BaseURL      string `envconfig:"PAKASIR_BASE_URL" default:"https://pakasir.zone.id"`
		Slug         string `envconfig:"PAKASIR_SLUG"`
		APIKey       string `envconfig:"PAKASIR_API_KEY"`
		RedirectBase string `envconfig:"PAYMENT_REDIRECT_BASE"`
	}

	Cron struct {
		Secret string `envconfig:"CRON_SECRET"`
	}

	Auth struct {
		Secret string `envconfig:"JWT_SECRET"`
	}

	Broadcast struct {
		DefaultDelaySeconds int           `envconfig:"BROADCAST_DELAY_SECONDS" default:"10"`
		Retention           time.Duration `envconfig:"BROADCAST_RETENTION" default:"48h"`
	}

	Class struct {
		// Name is appended to message signatures, e.g. "Admin Kas Kelas 1B".
		Name string `envconfig:"CLASS_NAME" default:"Kelas 1B"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
