package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
)

// getClient creates a backend client authenticated with the session token.
func getClient() (*social.Client, *Config) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No session token. Run 'socialctl config set auth.token <token>' first.")
		os.Exit(1)
	}

	opts := []social.ClientOption{social.WithClientLogger(logger)}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, social.WithBaseURL(cfg.Default.BaseURL))
	}
	if cfg.Default.PlayerID != "" {
		opts = append(opts, social.WithPlayerID(cfg.Default.PlayerID))
	}
	if cfg.Default.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Default.Timeout); err == nil {
			opts = append(opts, social.WithTimeout(d))
		}
	}
	return social.NewClient(cfg.Auth.Token, opts...), cfg
}

// openPrefs opens the preferences file.
func openPrefs() (*social.Preferences, *social.FileKV, error) {
	path, err := prefsPath()
	if err != nil {
		return nil, nil, err
	}
	kv, err := social.OpenFileKV(path)
	if err != nil {
		return nil, nil, err
	}
	return social.NewPreferences(kv), kv, nil
}

// loadHub builds a hub over the configured backend and fills its cache.
func loadHub(ctx context.Context) (*social.Hub, *Config, error) {
	client, cfg := getClient()
	prefs, _, err := openPrefs()
	if err != nil {
		return nil, nil, err
	}
	hub := social.NewHub(client,
		social.WithLogger(logger),
		social.WithNotifier(consoleNotifier{}),
		social.WithPreferences(prefs),
		social.WithSelfID(cfg.Default.PlayerID),
	)
	if err := hub.Refresh(ctx); err != nil {
		hub.Destroy()
		return nil, nil, fmt.Errorf("cannot load social state: %w", err)
	}
	return hub, cfg, nil
}

func cmdContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// consoleNotifier renders hub notifications on the terminal.
type consoleNotifier struct{}

func (consoleNotifier) Toast(message string) {
	fmt.Fprintf(os.Stderr, "! %s\n", message)
}

func (consoleNotifier) FriendOnline(f social.FriendSummary) {
	fmt.Printf("* %s is online\n", valueOrDefault(f.Name, f.PlayerID))
}

func (consoleNotifier) PlaySound() {
	fmt.Print("\a")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// apiError turns a backend error into a CLI error.
func apiError(err error) error {
	var apiErr *social.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API error: %s: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("request failed: %w", err)
}

// maskKey shows the first 6 and last 4 characters of a secret.
func maskKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:6] + "..." + key[len(key)-4:]
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func onlineMark(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
