// Package config loads project configuration from files, the environment
// and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem configuration, schema and query files are read
// from. Tests swap in afero.NewMemMapFs().
var AppFs = afero.NewOsFs()

const (
	// FileName is the config file name without extension.
	FileName = ".sqltyped"
	// EnvPrefix prefixes environment overrides, e.g. SQLTYPED_DATABASE_URL.
	EnvPrefix = "SQLTYPED"
)

// Config holds the application configuration
type Config struct {
	SchemaPath  string
	QueriesPath string
	DatabaseURL string
	// CacheSize is the number of analyzed statements kept. Zero disables
	// the cache.
	CacheSize int
	CacheTTL  time.Duration
	Debug     bool
	// Telemetry selects the telemetry adapter: noop, logging or stats.
	Telemetry string
}

// LoadConfig loads configuration for the current directory.
func LoadConfig() (*Config, error) {
	return Load(".")
}

// Load reads .sqltyped.yaml from dir, $HOME or $HOME/.config/sqltyped,
// then applies .env, .env.local and SQLTYPED_ environment variables.
func Load(dir string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	// .env.local wins over .env, and neither overrides the real environment.
	if err := loadEnv(filepath.Join(dir, ".env.local")); err != nil {
		return nil, err
	}
	if err := loadEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "sqltyped"))

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("schema_path", "schema.sql")
	v.SetDefault("queries_path", "queries")
	v.SetDefault("cache_size", 256)
	v.SetDefault("cache_ttl", time.Duration(0))
	v.SetDefault("debug", false)
	v.SetDefault("telemetry", "noop")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		SchemaPath:  v.GetString("schema_path"),
		QueriesPath: v.GetString("queries_path"),
		DatabaseURL: v.GetString("database_url"),
		CacheSize:   v.GetInt("cache_size"),
		CacheTTL:    v.GetDuration("cache_ttl"),
		Debug:       v.GetBool("debug"),
		Telemetry:   v.GetString("telemetry"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if !filepath.IsAbs(cfg.SchemaPath) {
		cfg.SchemaPath = filepath.Join(dir, cfg.SchemaPath)
	}
	if !filepath.IsAbs(cfg.QueriesPath) {
		cfg.QueriesPath = filepath.Join(dir, cfg.QueriesPath)
	}
	return cfg, nil
}

// loadEnv sets the variables of a dotenv file that are not already set.
// A missing file is not an error.
func loadEnv(path string) error {
	f, err := AppFs.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	vars, err := godotenv.Parse(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for key, value := range vars {
		if _, ok := os.LookupEnv(key); !ok {
			os.Setenv(key, value)
		}
	}
	return nil
}

// SaveConfig writes cfg to dir/.sqltyped.yaml and returns the path. An
// empty dir writes to $HOME/.config/sqltyped.
func SaveConfig(cfg *Config, dir string) (string, error) {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config", "sqltyped")
	}
	if err := AppFs.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.Set("schema_path", cfg.SchemaPath)
	v.Set("queries_path", cfg.QueriesPath)
	if cfg.DatabaseURL != "" {
		v.Set("database_url", cfg.DatabaseURL)
	}
	v.Set("cache_size", cfg.CacheSize)
	if cfg.CacheTTL > 0 {
		v.Set("cache_ttl", cfg.CacheTTL.String())
	}
	v.Set("debug", cfg.Debug)
	v.Set("telemetry", cfg.Telemetry)

	path := filepath.Join(dir, FileName+".yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
