package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/five82/courier/internal/instance"
)

// Config holds everything courier needs to reach the gateway and run.
type Config struct {
	GatewayURL     string        `mapstructure:"gateway-url"`
	APIKey         string        `mapstructure:"api-key"`
	Instance       string        `mapstructure:"instance"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	ArtifactSource string        `mapstructure:"artifact-source"`
	DataDir        string        `mapstructure:"data-dir"`
	LogLevel       string        `mapstructure:"log-level"`

	// ConfigPath is the file that was read, or empty when none was found.
	ConfigPath string `mapstructure:"-"`
}

const (
	defaultConfigPath     = "~/.config/courier/config.toml"
	defaultGatewayURL     = "http://127.0.0.1:8080"
	defaultInstance       = "agente"
	defaultPollInterval   = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultArtifactSource = "connect"
	defaultDataDir        = "~/.local/share/courier"
	defaultLogLevel       = "info"

	minPollInterval = 500 * time.Millisecond
)

// legacyEnv maps keys to the environment variables older deployments used.
var legacyEnv = map[string]string{
	"gateway-url": "EVOLUTION_API_URL",
	"api-key":     "EVOLUTION_API_KEY",
	"instance":    "EVOLUTION_INSTANCE",
}

// Load reads the config file at path (the default location when empty),
// overlays COURIER_* and legacy EVOLUTION_* environment variables, applies
// defaults and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("COURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envName := "COURIER_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("gateway-url", defaultGatewayURL)
	v.SetDefault("api-key", "")
	v.SetDefault("instance", defaultInstance)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("request-timeout", defaultRequestTimeout)
	v.SetDefault("artifact-source", defaultArtifactSource)
	v.SetDefault("data-dir", defaultDataDir)
	v.SetDefault("log-level", defaultLogLevel)

	v.SetConfigFile(resolved)
	v.SetConfigType("toml")
	configUsed := resolved
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		configUsed = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ConfigPath = configUsed

	cfg.GatewayURL = strings.TrimSpace(cfg.GatewayURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Instance = strings.TrimSpace(cfg.Instance)
	cfg.ArtifactSource = strings.ToLower(strings.TrimSpace(cfg.ArtifactSource))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if cfg.GatewayURL == "" {
		cfg.GatewayURL = defaultGatewayURL
	}
	if cfg.DataDir = strings.TrimSpace(cfg.DataDir); cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.DataDir = mustExpand(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, naming its key.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api-key is required (set COURIER_API_KEY or api-key in the config file)")
	}
	if c.Instance == "" {
		return errors.New("instance must not be empty")
	}
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("poll-interval must be at least %s, got %s", minPollInterval, c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := instance.ParseArtifactSource(c.ArtifactSource); err != nil {
		return fmt.Errorf("artifact-source: %w", err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log-level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Source returns the parsed artifact source.
func (c Config) Source() instance.ArtifactSource {
	src, err := instance.ParseArtifactSource(c.ArtifactSource)
	if err != nil {
		return instance.SourceConnect
	}
	return src
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
