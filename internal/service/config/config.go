package config

import "time"

type Config struct {
	Gateway Gateway `yaml:"gateway"`
	Poll    Poll    `yaml:"poll"`
}

type Gateway struct {
	BaseURL string        `yaml:"baseURL" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type Poll struct {
	Interval    time.Duration `yaml:"interval" validate:"gt=0"`
	MaxAttempts int           `yaml:"maxAttempts" validate:"gt=0"`
}
