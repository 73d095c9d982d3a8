package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("TOKEN_SECRET is not set")

// Origins every deployment accepts in addition to ORIGIN_URL.
var devOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

type Config struct {
	Port            int           `mapstructure:"port"`
	OriginURL       string        `mapstructure:"origin_url"`
	TokenSecret     string        `mapstructure:"token_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url"`
	SummaryModel    string        `mapstructure:"summary_model"`
	PlanModel       string        `mapstructure:"plan_model"`
	DBDriver        string        `mapstructure:"db_driver"`
	DSN             string        `mapstructure:"dsn"`
	AppEnv          string        `mapstructure:"app_env"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads .env files (when present), an optional config file named by
// CONFIG_FILE, and the environment, in increasing order of precedence.
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetDefault("port", 3000)
	v.SetDefault("origin_url", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("token_ttl", 6*time.Hour)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("summary_model", "gpt-3.5-turbo")
	v.SetDefault("plan_model", "gpt-4o-mini")
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("dsn", "")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.TokenSecret == "" {
		return ErrMissingSecret
	}
	switch c.DBDriver {
	case "memory":
	case "mysql":
		if c.DSN == "" {
			return errors.New("DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

// AllowedOrigins lists the origins CORS accepts.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(devOrigins)+1)
	if c.OriginURL != "" {
		origins = append(origins, c.OriginURL)
	}
	return append(origins, devOrigins...)
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
