package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
	"github.com/spf13/cobra"
)

var leaderboardCategory string

func init() {
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(privacyCmd)

	leaderboardCmd.Flags().StringVarP(&leaderboardCategory, "category", "c", "coins", "Leaderboard category")
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show leaderboard rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()

		hub := social.NewHub(client, social.WithLogger(logger))
		defer hub.Destroy()
		if err := hub.RefreshLeaderboard(ctx, leaderboardCategory); err != nil {
			return apiError(err)
		}
		rows := hub.Cache().Leaderboard()
		if jsonOutput {
			return printJSON(rows)
		}
		for _, r := range rows {
			fmt.Printf("%4d  %-24s %d\n", r.Rank, r.Name, r.Score)
		}
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List public rooms and saved custom rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()

		prefs, _, err := openPrefs()
		if err != nil {
			return err
		}
		hub := social.NewHub(client, social.WithLogger(logger), social.WithPreferences(prefs))
		defer hub.Destroy()
		if err := hub.RefreshRooms(ctx); err != nil {
			return apiError(err)
		}
		rooms := hub.Cache().PublicRooms()
		if jsonOutput {
			return printJSON(map[string]any{"public": rooms, "custom": prefs.CustomRooms()})
		}
		fmt.Printf("Public rooms (%d):\n", len(rooms))
		for _, r := range rooms {
			fmt.Printf("  %-24s %2d/%-2d  %s\n", r.Name, r.PlayerCount, r.MaxPlayers, r.ID)
		}
		if custom := prefs.CustomRooms(); len(custom) > 0 {
			fmt.Printf("Custom rooms (%d):\n", len(custom))
			for _, id := range custom {
				fmt.Printf("  %s\n", id)
			}
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search players by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()
		hub := social.NewHub(client, social.WithLogger(logger))
		defer hub.Destroy()

		done := make(chan []social.PlayerSummary, 1)
		hub.Search(args[0], func(hits []social.PlayerSummary) { done <- hits })

		select {
		case hits := <-done:
			if jsonOutput {
				return printJSON(hits)
			}
			if len(hits) == 0 {
				fmt.Println("No players found.")
			}
			for _, p := range hits {
				fmt.Printf("%-24s %s\n", p.Name, p.PlayerID)
			}
			return nil
		case <-time.After(15 * time.Second):
			return fmt.Errorf("search timed out")
		}
	},
}

var privacyCmd = &cobra.Command{
	Use:   "privacy [show-online=<bool>] [show-room=<bool>] [allow-requests=<bool>]",
	Short: "Show or update privacy settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		profile, ok := hub.Cache().Profile()
		if !ok {
			return fmt.Errorf("profile not available")
		}
		p := profile.Privacy
		if len(args) > 0 {
			if err := applyPrivacyArgs(&p, args); err != nil {
				return err
			}
			if p, err = hub.UpdatePrivacy(ctx, p); err != nil {
				return apiError(err)
			}
		}
		if jsonOutput {
			return printJSON(p)
		}
		fmt.Printf("Show online status:    %t\n", p.ShowOnlineStatus)
		fmt.Printf("Show room:             %t\n", p.ShowRoom)
		fmt.Printf("Allow friend requests: %t\n", p.AllowFriendRequests)
		return nil
	},
}

// applyPrivacyArgs parses key=bool pairs into p.
func applyPrivacyArgs(p *social.PrivacySettings, args []string) error {
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "show-online":
			p.ShowOnlineStatus = v
		case "show-room":
			p.ShowRoom = v
		case "allow-requests":
			p.AllowFriendRequests = v
		default:
			return fmt.Errorf("unknown privacy setting %q", key)
		}
	}
	return nil
}
