package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and unread counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Base URL:   %s\n", valueOrDefault(cfg.Default.BaseURL, "(default)"))
		fmt.Printf("  Player ID:  %s\n", valueOrDefault(cfg.Default.PlayerID, "(not set)"))
		fmt.Printf("  Transport:  %s\n", valueOrDefault(cfg.Push.Transport, "ws"))
		if cfg.Auth.Token != "" {
			fmt.Printf("  Token:      %s\n", maskKey(cfg.Auth.Token))
		} else {
			fmt.Println("  Token:      (not set)")
			return nil
		}

		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()

		hub, _, err := loadHub(ctx)
		if err != nil {
			fmt.Printf("\n  Error fetching live status: %v\n", err)
			return nil
		}
		defer hub.Destroy()

		fmt.Println()
		fmt.Println("Live status:")
		if p, ok := hub.Cache().Profile(); ok {
			fmt.Printf("  Name:       %s (%s)\n", p.Name, p.PlayerID)
		}
		t := hub.Totals()
		fmt.Printf("  Friends:    %d (%d unread)\n", len(hub.Cache().Friends()), t.Friends)
		fmt.Printf("  Groups:     %d (%d unread)\n", len(hub.Cache().Groups()), t.Groups)
		fmt.Printf("  Requests:   %d\n", t.Requests)
		fmt.Printf("  Total:      %d\n", t.Total)
		return nil
	},
}
