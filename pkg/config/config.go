package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"

	"inventory/pkg/storage"
)

const (
	DefaultPort         = 3000
	DefaultPlayer       = "archit_pro2013"
	DefaultDataDir      = "data"
	DefaultLogFile      = "logs/visitors.log"
	DefaultMaxBodyBytes = 300 << 10
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Port         int    `toml:"port" env:"PORT"`
	AdminToken   string `toml:"adminToken" env:"ADMIN_TOKEN"`
	Player       string `toml:"player" env:"PLAYER"`
	DataDir      string `toml:"dataDir" env:"DATA_DIR"`
	LogFile      string `toml:"logFile" env:"LOG_FILE"`
	LogLevel     string `toml:"logLevel" env:"LOG_LEVEL"`
	MaxBodyBytes int64  `toml:"maxBodyBytes" env:"MAX_BODY_BYTES"`

	KafkaAddr  string `toml:"kafkaAddr" env:"KAFKA_ADDR"`
	KafkaTopic string `toml:"kafkaTopic" env:"KAFKA_TOPIC"`
	KafkaBatch int    `toml:"kafkaBatch" env:"KAFKA_BATCH"`
}

// Default returns a config with every optional value filled in.
// The admin token has no default and must be supplied.
func Default() Config {
	return Config{
		Port:         DefaultPort,
		Player:       DefaultPlayer,
		DataDir:      DefaultDataDir,
		LogFile:      DefaultLogFile,
		LogLevel:     "info",
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Load builds the config from defaults, the TOML file at path and the
// environment, in that order. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		_, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debugf("[config] config file %s not found, using defaults", path)
		case err != nil:
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate reports the first problem that would keep the server from running.
func (c Config) Validate() error {
	if c.AdminToken == "" {
		return fmt.Errorf("%w: admin token is empty", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if !storage.ValidPlayerName(c.Player) {
		return fmt.Errorf("%w: invalid player name %q", ErrInvalidConfig, c.Player)
	}
	if c.DataDir == "" || c.LogFile == "" {
		return fmt.Errorf("%w: data dir and log file are required", ErrInvalidConfig)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max body bytes must be positive", ErrInvalidConfig)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if (c.KafkaAddr == "") != (c.KafkaTopic == "") {
		return fmt.Errorf("%w: kafka address and topic must be set together", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Level returns the logrus level, falling back to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func (c Config) KafkaEnabled() bool {
	return c.KafkaAddr != "" && c.KafkaTopic != ""
}

func (c Config) String() string {
	c.AdminToken = strings.Repeat("*", len([]rune(c.AdminToken)))

	return fmt.Sprintf("%#v", c)
}
