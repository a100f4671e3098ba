package main

import (
	"fmt"
	"strconv"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSoundCmd)
	prefsCmd.AddCommand(prefsTabCmd)
	prefsCmd.AddCommand(prefsRoomAddCmd)
	prefsCmd.AddCommand(prefsResetCmd)
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage local preferences",
	Long:  "View or modify the local preferences stored in ~/.socialctl/prefs.toml.",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefs, _, err := openPrefs()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{
				"sound":        prefs.SoundEnabled(),
				"authDeclined": prefs.AuthDeclined(),
				"lastTab":      prefs.LastTab(),
				"customRooms":  prefs.CustomRooms(),
			})
		}
		fmt.Printf("Notification sound: %t\n", prefs.SoundEnabled())
		fmt.Printf("Auth declined:      %t\n", prefs.AuthDeclined())
		fmt.Printf("Last tab:           %s\n", prefs.LastTab())
		fmt.Printf("Custom rooms:       %v\n", prefs.CustomRooms())
		return nil
	},
}

var prefsSoundCmd = &cobra.Command{
	Use:   "sound <on|off>",
	Short: "Enable or disable the unread notification sound",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var on bool
		switch args[0] {
		case "on":
			on = true
		case "off":
		default:
			b, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			on = b
		}
		prefs, _, err := openPrefs()
		if err != nil {
			return err
		}
		if err := prefs.SetSoundEnabled(on); err != nil {
			return err
		}
		fmt.Printf("Notification sound: %t\n", on)
		return nil
	},
}

var prefsTabCmd = &cobra.Command{
	Use:   "tab <name>",
	Short: "Set the tab the hub opens on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab := social.Tab(args[0])
		if !tab.Valid() {
			return fmt.Errorf("unknown tab %q", args[0])
		}
		prefs, _, err := openPrefs()
		if err != nil {
			return err
		}
		if err := prefs.SetLastTab(tab); err != nil {
			return err
		}
		fmt.Printf("Last tab: %s\n", tab)
		return nil
	},
}

var prefsRoomAddCmd = &cobra.Command{
	Use:   "add-room <room-id>",
	Short: "Save a custom room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefs, _, err := openPrefs()
		if err != nil {
			return err
		}
		if err := prefs.AddCustomRoom(args[0]); err != nil {
			return err
		}
		fmt.Printf("Custom rooms: %v\n", prefs.CustomRooms())
		return nil
	},
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every stored preference",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, kv, err := openPrefs()
		if err != nil {
			return err
		}
		for _, k := range kv.Keys() {
			if err := kv.Delete(k); err != nil {
				return err
			}
		}
		fmt.Println("Preferences reset.")
		return nil
	},
}
