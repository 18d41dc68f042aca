// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the bot reads from the environment.
type Config struct {
	DiscordToken  string `env:"DISCORD_TOKEN"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:">"`

	DBDriver   string `env:"DB_DRIVER"   envDefault:"postgres"`
	DBHost     string `env:"DB_HOST"     envDefault:"localhost"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     int    `env:"DB_PORT"     envDefault:"5432"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"proxybot.db"`

	ImageDir          string `env:"IMAGE_DIR"           envDefault:"images"`
	HTTPAddr          string `env:"HTTP_ADDR"           envDefault:":8080"`
	AvatarURLTemplate string `env:"AVATAR_URL_TEMPLATE" envDefault:"http://localhost:8080/images/{id}"`

	PromptTimeout  time.Duration `env:"PROMPT_TIMEOUT"   envDefault:"120s"`
	NoticeTTL      time.Duration `env:"NOTICE_TTL"       envDefault:"3s"`
	StaffChannelID string        `env:"STAFF_CHANNEL_ID"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and then parses the environment.
// The returned bool reports whether a .env file was found.
func Load(files ...string) (Config, bool, error) {
	found := godotenv.Load(files...) == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, found, fmt.Errorf("parse env: %w", err)
	}
	return cfg, found, nil
}

// Validate checks the settings the bot cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of postgres, sqlite", c.DBDriver))
	}
	if !strings.Contains(c.AvatarURLTemplate, "{id}") {
		errs = append(errs, errors.New("AVATAR_URL_TEMPLATE must contain {id}"))
	}
	if c.PromptTimeout <= 0 {
		errs = append(errs, errors.New("PROMPT_TIMEOUT must be positive"))
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be blank"))
	}
	return errors.Join(errs...)
}

// SearchEnabled reports whether semantic persona search can run.
func (c Config) SearchEnabled() bool {
	return c.OpenAIAPIKey != "" && c.DBDriver == "postgres"
}
