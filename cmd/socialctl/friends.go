package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(friendsCmd)
	friendsCmd.AddCommand(friendsListCmd)
	friendsCmd.AddCommand(friendsRequestsCmd)
	friendsCmd.AddCommand(friendsAcceptCmd)
	friendsCmd.AddCommand(friendsRejectCmd)
	friendsCmd.AddCommand(friendsRemoveCmd)
}

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "Friend list and friend requests",
}

var friendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List friends with presence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		friends := hub.Cache().Friends()
		if jsonOutput {
			return printJSON(friends)
		}
		if len(friends) == 0 {
			fmt.Println("No friends yet.")
			return nil
		}
		for _, f := range friends {
			room := ""
			if f.RoomID != "" {
				room = "  room " + f.RoomID
			}
			fmt.Printf("%-24s %-8s %s%s\n", f.Name, onlineMark(f.IsOnline), f.PlayerID, room)
		}
		return nil
	},
}

var friendsRequestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List incoming and outgoing friend requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		reqs := hub.Cache().FriendRequests()
		if jsonOutput {
			return printJSON(reqs)
		}
		fmt.Printf("Incoming (%d):\n", len(reqs.Incoming))
		for _, r := range reqs.Incoming {
			fmt.Printf("  %-24s %s\n", r.Name, r.PlayerID)
		}
		fmt.Printf("Outgoing (%d):\n", len(reqs.Outgoing))
		for _, r := range reqs.Outgoing {
			fmt.Printf("  %-24s %s\n", r.Name, r.PlayerID)
		}
		return nil
	},
}

var friendsAcceptCmd = &cobra.Command{
	Use:   "accept <player-id>",
	Short: "Accept an incoming friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		f, err := hub.AcceptFriendRequest(ctx, args[0])
		if err != nil {
			return apiError(err)
		}
		fmt.Printf("%s is now your friend.\n", valueOrDefault(f.Name, f.PlayerID))
		return nil
	},
}

var friendsRejectCmd = &cobra.Command{
	Use:   "reject <player-id>",
	Short: "Reject an incoming friend request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		if err := hub.RejectFriendRequest(ctx, args[0]); err != nil {
			return apiError(err)
		}
		fmt.Println("Request rejected.")
		return nil
	},
}

var friendsRemoveCmd = &cobra.Command{
	Use:   "remove <player-id>",
	Short: "Remove a friend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		if err := hub.RemoveFriend(ctx, args[0]); err != nil {
			return apiError(err)
		}
		fmt.Println("Friend removed.")
		return nil
	},
}
