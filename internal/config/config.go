package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	// EnvConfigPrefix is the prefix of every environment variable read at startup.
	EnvConfigPrefix = "SWEAPP"

	// ListenTCP serves plain HTTP on ListenAddr.
	ListenTCP = "tcp"
	// ListenTailnet serves HTTPS on the tailnet through tsnet.
	ListenTailnet = "tailnet"
)

// Config is the configuration of the chat server.
type Config struct {
	ListenMode string `default:"tcp" split_words:"true"`
	ListenAddr string `default:":8080" split_words:"true"`

	// Tailnet node settings, used when ListenMode is "tailnet".
	TailnetHostname string `default:"sweapp-chat" split_words:"true"`
	StateDir        string `split_words:"true"`

	DatabasePath string `split_words:"true"`

	// AllowedOrigins are browser origins, besides the server's own, that may
	// open chat sockets. Comma separated.
	AllowedOrigins []string `split_words:"true"`

	TokenSecret string        `split_words:"true" json:"-"`
	TokenTTL    time.Duration `default:"24h" envconfig:"TOKEN_TTL"`

	// ClientQueueSize bounds the frames pending for one connection before it is
	// disconnected as too slow.
	ClientQueueSize int `default:"256" split_words:"true"`
	// TimeZone renders message timestamps on chat frames.
	TimeZone string `default:"UTC" split_words:"true"`

	LogLevel  string `default:"INFO" split_words:"true"`
	LogFormat string `default:"text" split_words:"true"`
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(EnvConfigPrefix, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.ListenMode != ListenTCP && cfg.ListenMode != ListenTailnet {
		return fmt.Errorf("unknown listen mode %q", cfg.ListenMode)
	}
	if cfg.TokenSecret == "" {
		return errors.New("SWEAPP_TOKEN_SECRET must be set")
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", cfg.TimeZone, err)
	}
	if cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("no state directory: %w", err)
		}
		cfg.StateDir = filepath.Join(dir, "sweapp")
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.StateDir, "chat.db")
	}
	return nil
}

// Location returns the time zone for message timestamps.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// String returns a representation of the Config instance without secrets.
func (cfg *Config) String() string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SetupLogging configures logrus from LogLevel and LogFormat. An invalid level
// falls back to INFO.
func (cfg *Config) SetupLogging() {
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error("Invalid logging level passed in. Will use default level set to INFO")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
