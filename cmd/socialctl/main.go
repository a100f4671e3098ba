package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.socialctl/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Auth    ConfigAuth    `toml:"auth"`
	Push    ConfigPush    `toml:"push"`
}

// ConfigDefault holds general client settings.
type ConfigDefault struct {
	BaseURL  string `toml:"base_url"`
	PlayerID string `toml:"player_id"`
	Timeout  string `toml:"timeout"`
}

// ConfigAuth holds the session credentials.
type ConfigAuth struct {
	Token string `toml:"token"`
}

// ConfigPush holds the push transport settings used by 'watch'.
type ConfigPush struct {
	Transport     string `toml:"transport"`
	WebhookSecret string `toml:"webhook_secret"`
	WebhookAddr   string `toml:"webhook_addr"`
}

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.socialctl, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".socialctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// prefsPath returns the full path to the preferences file.
func prefsPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prefs.toml"), nil
}

// loadConfig reads the config file, then applies SOCIAL_* environment
// overrides (including those from a .env file).
func loadConfig() (*Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// loadConfigFile reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfigFile() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for env, dst := range map[string]*string{
		"SOCIAL_BASE_URL":       &cfg.Default.BaseURL,
		"SOCIAL_PLAYER_ID":      &cfg.Default.PlayerID,
		"SOCIAL_TOKEN":          &cfg.Auth.Token,
		"SOCIAL_TRANSPORT":      &cfg.Push.Transport,
		"SOCIAL_WEBHOOK_SECRET": &cfg.Push.WebhookSecret,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// setConfigValue sets a config field using dot notation (e.g. "auth.token").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. auth.token)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "base_url":
			cfg.Default.BaseURL = value
		case "player_id":
			cfg.Default.PlayerID = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout %q: %w", value, err)
			}
			cfg.Default.Timeout = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "auth":
		switch field {
		case "token":
			cfg.Auth.Token = value
		default:
			return fmt.Errorf("unknown field %q in section [auth]", field)
		}
	case "push":
		switch field {
		case "transport":
			if value != "ws" && value != "sse" && value != "webhook" {
				return fmt.Errorf("transport must be ws, sse or webhook")
			}
			cfg.Push.Transport = value
		case "webhook_secret":
			cfg.Push.WebhookSecret = value
		case "webhook_addr":
			cfg.Push.WebhookAddr = value
		default:
			return fmt.Errorf("unknown field %q in section [push]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, auth, push)", section)
	}
	return nil
}

// ============================================================================
// Root command
// ============================================================================

var (
	debugFlag  bool
	jsonOutput bool

	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "socialctl",
	Short: "Social hub CLI",
	Long:  "Command-line interface for the game's social layer.\nManage configuration and preferences, inspect friends, groups and conversations, and watch live pushes.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if debugFlag {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
