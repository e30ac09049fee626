package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release"`
	Port       int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	StaticPath string        `mapstructure:"static_path" validate:"required"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	Secret     string        `mapstructure:"secret"`

	UploadDir    string   `mapstructure:"upload_dir" validate:"required"`
	MaxFileSize  int64    `mapstructure:"max_file_size" validate:"gt=0"`
	AllowedTypes []string `mapstructure:"allowed_types" validate:"min=1"`

	ChatRateLimit  int           `mapstructure:"chat_rate_limit" validate:"gte=0"`
	ChatRateWindow time.Duration `mapstructure:"chat_rate_window" validate:"gt=0"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("max_file_size", 10<<20)
	v.SetDefault("allowed_types", []string{
		"application/pdf", "image/png", "image/jpeg", "image/gif",
		"text/plain", "application/zip",
	})
	v.SetDefault("chat_rate_limit", 20)
	v.SetDefault("chat_rate_window", "10s")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
