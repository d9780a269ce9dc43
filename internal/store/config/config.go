package config

type Config struct {
	// Пустой DSN - результаты хранятся в памяти
	DBDsn string `yaml:"dbDsn"`
}
