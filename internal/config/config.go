package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	handlerConfig "github.com/iurnickita/bogstatus/internal/handler/config"
	loggerConfig "github.com/iurnickita/bogstatus/internal/logger/config"
	serviceConfig "github.com/iurnickita/bogstatus/internal/service/config"
	storeConfig "github.com/iurnickita/bogstatus/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config `yaml:"handler"`
	Service serviceConfig.Config `yaml:"service"`
	Store   storeConfig.Config   `yaml:"store"`
	Logger  loggerConfig.Config  `yaml:"logger"`

	// Путь к YAML-файлу, если он задан
	Path string `yaml:"-"`
}

func Default() Config {
	return Config{
		Handler: handlerConfig.Config{
			ServerAddr:      "localhost:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Service: serviceConfig.Config{
			Gateway: serviceConfig.Gateway{
				BaseURL: "http://localhost:8081",
				Timeout: 10 * time.Second,
			},
			Poll: serviceConfig.Poll{
				Interval:    2 * time.Second,
				MaxAttempts: 15,
			},
		},
		Logger: loggerConfig.Config{
			LogLevel: "info",
		},
	}
}

// GetConfig собирает конфигурацию: умолчания, .env, YAML-файл, переменные
// окружения, флаги. Каждый следующий источник перекрывает предыдущий.
func GetConfig(args []string) (Config, error) {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	flags := flag.NewFlagSet("bogstatus", flag.ContinueOnError)
	path := flags.String("c", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	serverAddr := flags.String("a", "", "HTTP server address")
	baseURL := flags.String("g", "", "BOG status gateway base URL")
	dbDsn := flags.String("d", "", "Postgres DSN, empty keeps results in memory")
	logLevel := flags.String("l", "", "log level")
	interval := flags.Duration("i", 0, "poll interval")
	maxAttempts := flags.Int("m", 0, "poll attempt ceiling")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		if err := LoadFile(*path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Path = *path
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.Handler.ServerAddr = *serverAddr
		case "g":
			cfg.Service.Gateway.BaseURL = *baseURL
		case "d":
			cfg.Store.DBDsn = *dbDsn
		case "l":
			cfg.Logger.LogLevel = *logLevel
		case "i":
			cfg.Service.Poll.Interval = *interval
		case "m":
			cfg.Service.Poll.MaxAttempts = *maxAttempts
		}
	})

	return cfg, Validate(cfg)
}

// LoadFile накладывает значения из YAML-файла поверх cfg.
func LoadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("RUN_ADDRESS"); v != "" {
		cfg.Handler.ServerAddr = v
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		cfg.Handler.AdminSecret = v
	}
	if v := os.Getenv("BOG_BASE_URL"); v != "" {
		cfg.Service.Gateway.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URI"); v != "" {
		cfg.Store.DBDsn = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logger.LogLevel = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		cfg.Service.Poll.Interval = d
	}
	if v := os.Getenv("POLL_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POLL_MAX_ATTEMPTS: %w", err)
		}
		cfg.Service.Poll.MaxAttempts = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
