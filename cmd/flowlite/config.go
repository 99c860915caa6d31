package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rendis/flowlite/internal/store"
)

// Config holds all flowlite configuration.
// Priority: flags > env vars (FLOWLITE_*) > settings file > defaults.
type Config struct {
	Backend         string            `mapstructure:"backend"`
	DBPath          string            `mapstructure:"db_path"`
	Neo4j           store.Neo4jConfig `mapstructure:"neo4j"`
	LogLevel        string            `mapstructure:"log_level"`
	LogFormat       string            `mapstructure:"log_format"`
	NATSURL         string            `mapstructure:"nats_url"`
	TransitionGuard string            `mapstructure:"transition_guard"`
	SweepSchedule   string            `mapstructure:"sweep_schedule"`
	SuggestLimit    int               `mapstructure:"suggest_limit"`
}

const (
	backendLibSQL = "libsql"
	backendNeo4j  = "neo4j"

	sweepOff = "off"
)

func flowliteDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowlite"
	}
	return filepath.Join(home, ".flowlite")
}

// newViper returns a viper instance with defaults and env binding. Settings
// files are read by loadConfig.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("backend", backendLibSQL)
	v.SetDefault("db_path", filepath.Join(flowliteDir(), "flowlite.db"))
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("nats_url", "")
	v.SetDefault("transition_guard", "permissive")
	v.SetDefault("sweep_schedule", "@every 1m")
	v.SetDefault("suggest_limit", 5)

	v.SetEnvPrefix("flowlite")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the settings file, if any, and decodes the merged layers.
// An explicit path must exist; the default ~/.flowlite/settings.{yaml,json}
// is optional.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath(flowliteDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Backend {
	case backendLibSQL:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the libsql backend")
		}
	case backendNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("neo4j.uri is required for the neo4j backend")
		}
	default:
		return fmt.Errorf("unknown backend %q: must be libsql or neo4j", c.Backend)
	}
	return nil
}
