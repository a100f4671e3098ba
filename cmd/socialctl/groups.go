package main

import (
	"fmt"
	"time"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(groupsCmd)
	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsShowCmd)
	groupsCmd.AddCommand(groupsRenameCmd)
	groupsCmd.AddCommand(groupsRoleCmd)
	groupsCmd.AddCommand(groupsKickCmd)
	groupsCmd.AddCommand(groupsVisibilityCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Group management commands",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups you belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		groups := hub.Cache().Groups()
		if jsonOutput {
			return printJSON(groups)
		}
		if len(groups) == 0 {
			fmt.Println("No groups.")
			return nil
		}
		for _, g := range groups {
			fmt.Printf("%-24s %-8s %s  %d members\n", g.Name, g.Visibility, g.ID, len(g.Members))
		}
		return nil
	},
}

var groupsShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "Show a group and its members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()

		g, err := client.FetchGroup(ctx, args[0])
		if err != nil {
			return apiError(err)
		}
		if jsonOutput {
			return printJSON(g)
		}
		fmt.Printf("Group:      %s (%s)\n", g.Name, g.ID)
		fmt.Printf("Visibility: %s\n", g.Visibility)
		fmt.Printf("Members (%d):\n", len(g.Members))
		for _, m := range g.Members {
			fmt.Printf("  %-24s %-7s %-8s %s\n", m.Name, m.Role, onlineMark(m.IsOnline), m.PlayerID)
		}
		return nil
	},
}

var groupsRenameCmd = &cobra.Command{
	Use:   "rename <group-id> <name>",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		g, err := hub.RenameGroup(ctx, args[0], args[1])
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Group renamed to %q.\n", g.Name)
		return nil
	},
}

var groupsRoleCmd = &cobra.Command{
	Use:   "role <group-id> <player-id> <admin|member>",
	Short: "Change a member's role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		m, err := hub.ChangeMemberRole(ctx, args[0], args[1], social.Role(args[2]))
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("%s is now %s.\n", valueOrDefault(m.Name, args[1]), m.Role)
		return nil
	},
}

var groupsKickCmd = &cobra.Command{
	Use:   "kick <group-id> <player-id>",
	Short: "Remove a member from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		if err := hub.KickMember(ctx, args[0], args[1]); err != nil {
			return apiError(err)
		}
		fmt.Println("Member removed.")
		return nil
	},
}

var groupsVisibilityCmd = &cobra.Command{
	Use:   "visibility <group-id> <public|private>",
	Short: "Make a group public or private",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		g, err := hub.SetGroupVisibility(ctx, args[0], social.Visibility(args[1]))
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("Group %s is now %s.\n", g.Name, g.Visibility)
		return nil
	},
}
