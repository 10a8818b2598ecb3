package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "DRILL"

// Options controls where Load looks for configuration.
// The zero value reads config.yaml and .env from the working directory of the OS filesystem.
type Options struct {
	Fs         afero.Fs
	ConfigFile string
	EnvFile    string
}

// Load configuration from environment variables and optionally config files.
// Precedence, highest first: process environment, .env file, config file, defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWithOptions(Options{})
}

// LoadWithOptions is Load with an explicit filesystem and file locations.
func LoadWithOptions(opts Options) (*Config, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = "config.yaml"
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	v := viper.New()
	v.SetFs(opts.Fs)
	setDefaults(v)

	exists, err := afero.Exists(opts.Fs, opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if exists {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := mergeDotEnv(v, opts.Fs, opts.EnvFile); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys without defaults are invisible to Unmarshal unless bound explicitly
	for _, key := range []string{"database.url", "auth.jwt_secret"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("practice.default_question_language", "primary")
	v.SetDefault("practice.shuffle_seed", 0)
}

// mergeDotEnv layers DRILL_* entries of the .env file over the config file.
// DRILL_DATABASE_MAX_OPEN_CONNS becomes database.max_open_conns.
func mergeDotEnv(v *viper.Viper, fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if !exists {
		return nil
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read env file: %w", err)
	}
	values, err := godotenv.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to parse env file: %w", err)
	}

	tree := make(map[string]interface{})
	for name, value := range values {
		rest, ok := strings.CutPrefix(name, EnvPrefix+"_")
		if !ok {
			continue
		}
		section, key, ok := strings.Cut(strings.ToLower(rest), "_")
		if !ok || section == "" || key == "" {
			continue
		}
		sub, _ := tree[section].(map[string]interface{})
		if sub == nil {
			sub = make(map[string]interface{})
			tree[section] = sub
		}
		sub[key] = value
	}

	if len(tree) == 0 {
		return nil
	}
	if err := v.MergeConfigMap(tree); err != nil {
		return fmt.Errorf("failed to merge env file: %w", err)
	}
	return nil
}
