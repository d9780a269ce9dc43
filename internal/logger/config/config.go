package config

type Config struct {
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error dpanic panic fatal"`
}
