package config

import "time"

type Config struct {
	ServerAddr      string        `yaml:"serverAddr" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"gte=0"`
	// Пустой секрет - админские маршруты не регистрируются
	AdminSecret string `yaml:"adminSecret"`
}
