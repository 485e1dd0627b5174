// Package config manages application configuration from files and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/logging"
)

// APIKeys holds the per-provider credentials from the config file.
type APIKeys struct {
	OpenAI     string `mapstructure:"openai"`
	Anthropic  string `mapstructure:"anthropic"`
	Gemini     string `mapstructure:"gemini"`
	OpenRouter string `mapstructure:"openrouter"`
}

// Config holds the application configuration.
type Config struct {
	Provider string            `mapstructure:"provider"`
	Model    string            `mapstructure:"model"`
	APIKeys  APIKeys           `mapstructure:"api_keys"`
	BaseURLs map[string]string `mapstructure:"base_urls"`
	DataDir  string            `mapstructure:"data_dir"`
	Catalog  struct {
		Backend  string `mapstructure:"backend"`
		Path     string `mapstructure:"path"`
		RedisURL string `mapstructure:"redis_url"`
	} `mapstructure:"catalog"`
	Audit struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"audit"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Sandbox struct {
		MaxSteps uint64 `mapstructure:"max_steps"`
	} `mapstructure:"sandbox"`
	Output struct {
		Color bool `mapstructure:"color"`
	} `mapstructure:"output"`

	// Keys is the merged credential set: environment first, then the file.
	Keys ai.Credentials `mapstructure:"-"`
}

// Load reads the configuration from ~/.sheetbot/config.yaml, a .env file in
// the working directory and environment variables.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir())
	setDefaults()

	// SHEETBOT_LOG_LEVEL overrides log.level and so on.
	viper.SetEnvPrefix("SHEETBOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}
	return current()
}

func setDefaults() {
	dir := configDir()
	viper.SetDefault("provider", string(ai.ProviderOpenAI))
	viper.SetDefault("model", "")
	for _, id := range ai.Providers {
		viper.SetDefault("api_keys."+string(id), "")
	}
	viper.SetDefault("data_dir", filepath.Join(dir, "files"))
	viper.SetDefault("catalog.backend", "sqlite")
	viper.SetDefault("catalog.path", filepath.Join(dir, "catalog.db"))
	viper.SetDefault("catalog.redis_url", "")
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.path", filepath.Join(dir, "edits.jsonl"))
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("sandbox.max_steps", 10_000_000)
	viper.SetDefault("output.color", true)
}

func current() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	env, err := envCredentials()
	if err != nil {
		return nil, err
	}
	cfg.Keys = env.merge(cfg.APIKeys)
	return &cfg, nil
}

// dotenvExports remembers what LoadDotEnv put into the environment so a later
// load can replace those values without touching variables set by the user.
var dotenvExports = struct {
	sync.Mutex
	values map[string]string
}{values: map[string]string{}}

// LoadDotEnv exports the variables of a dotenv file. Variables already set in
// the environment win. Calling it again re-reads the file: values it exported
// earlier are replaced, and removed when the file no longer has them. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	values, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load %s: %w", path, err)
	}

	dotenvExports.Lock()
	defer dotenvExports.Unlock()

	for name, exported := range dotenvExports.values {
		if cur, ok := os.LookupEnv(name); !ok || cur != exported {
			// Changed or unset since; it is no longer ours.
			delete(dotenvExports.values, name)
			continue
		}
		if _, keep := values[name]; !keep {
			os.Unsetenv(name)
			delete(dotenvExports.values, name)
		}
	}
	for name, value := range values {
		_, ours := dotenvExports.values[name]
		if _, set := os.LookupEnv(name); set && !ours {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("could not export %s from %s: %w", name, path, err)
		}
		dotenvExports.values[name] = value
	}
	return nil
}

// WatchConfig calls onChange with the re-read configuration whenever the
// config file changes on disk. It reports false when no config file is in
// use.
func WatchConfig(onChange func(*Config, error)) bool {
	if viper.ConfigFileUsed() == "" {
		return false
	}
	viper.OnConfigChange(func(fsnotify.Event) {
		if err := LoadDotEnv(".env"); err != nil {
			onChange(nil, err)
			return
		}
		onChange(current())
	})
	viper.WatchConfig()
	return true
}

// ToAIConfig builds the provider snapshot.
func (c *Config) ToAIConfig() ai.Config {
	cfg := ai.Config{
		Provider: ai.ProviderID(strings.ToLower(strings.TrimSpace(c.Provider))),
		Model:    c.Model,
		Keys:     c.Keys,
	}
	if len(c.BaseURLs) > 0 {
		cfg.BaseURLs = make(map[ai.ProviderID]string, len(c.BaseURLs))
		for k, v := range c.BaseURLs {
			cfg.BaseURLs[ai.ProviderID(strings.ToLower(k))] = v
		}
	}
	return cfg
}

// CatalogOptions returns the catalog backend selection.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Backend:  c.Catalog.Backend,
		Path:     c.Catalog.Path,
		RedisURL: c.Catalog.RedisURL,
	}
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions(verbose bool) logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format, Verbose: verbose}
}

// Get retrieves a config value. Credentials are masked.
func Get(key string) string {
	v := viper.GetString(key)
	if strings.HasPrefix(strings.ToLower(key), "api_keys.") {
		return mask(v)
	}
	return v
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sheetbot"
	}
	return filepath.Join(home, ".sheetbot")
}
