package main

import (
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// configKeys lists every key accepted by 'config set'.
var configKeys = []string{
	"default.base_url",
	"default.player_id",
	"default.timeout",
	"auth.token",
	"push.transport",
	"push.webhook_secret",
	"push.webhook_addr",
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the game server, session and push settings",
	Long: "Settings live in ~/.socialctl/config.toml. SOCIAL_* environment variables\n" +
		"(also read from a .env file) override the file when commands run.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := configPath()
		if err != nil {
			return err
		}
		data, err := toml.Marshal(redactConfig(*cfg))
		if err != nil {
			return fmt.Errorf("cannot render config: %w", err)
		}
		fmt.Printf("# %s\n%s", path, data)
		if cfg.Auth.Token == "" {
			fmt.Println("# no session token: socialctl config set auth.token <token>")
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting in the config file",
	Long: "Store one setting in the config file. Keys:\n  " + strings.Join(configKeys, "\n  ") +
		"\n\npush.transport is one of ws, sse or webhook; webhook also needs\n" +
		"push.webhook_secret, the HMAC key the game server signs deliveries with.\n" +
		"Example: socialctl config set push.transport sse",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFile()
		if err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := saveConfig(cfg); err != nil {
			return err
		}
		logger.Debug().Str("key", args[0]).Msg("config updated")
		fmt.Printf("%s updated\n", args[0])
		return nil
	},
}

// redactConfig masks the session token and the webhook secret.
func redactConfig(cfg Config) Config {
	if cfg.Auth.Token != "" {
		cfg.Auth.Token = maskKey(cfg.Auth.Token)
	}
	if cfg.Push.WebhookSecret != "" {
		cfg.Push.WebhookSecret = maskKey(cfg.Push.WebhookSecret)
	}
	return cfg
}
