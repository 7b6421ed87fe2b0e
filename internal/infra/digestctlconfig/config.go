// Package digestctlconfig loads the operator CLI's configuration from a
// .env file, an optional YAML config file, and the environment, in that
// order of increasing precedence.
package digestctlconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything digestctl needs to reach the database and
// the worker-facing usecase services it drives directly.
type Config struct {
	DatabaseURL    string        `mapstructure:"database_url"`
	DashboardPoll  time.Duration `mapstructure:"dashboard_poll"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
}

var global *Config

// Load reads .env (best-effort), then an optional config file, then the
// environment, and returns the merged configuration. Subsequent calls
// return the same instance.
func Load(configFile string) (*Config, error) {
	if global != nil {
		return global, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".digestctl")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("database_url", "")
	viper.SetDefault("dashboard_poll", "3s")
	viper.SetDefault("embedding_model", "text-embedding-3-small")

	viper.BindEnv("database_url", "DATABASE_URL")
	viper.BindEnv("embedding_model", "EMBEDDING_MODEL")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = viper.GetString("database_url")
	}

	global = cfg
	return global, nil
}
