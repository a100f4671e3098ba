package main

import (
	"fmt"
	"time"

	social "github.com/Ariedam64/MagicGarden-modMenu-sub000"
	"github.com/spf13/cobra"
)

var (
	groupTarget bool
	markRead    bool
)

func init() {
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(sendCmd)

	threadCmd.Flags().BoolVarP(&groupTarget, "group", "g", false, "Target is a group id")
	threadCmd.Flags().BoolVar(&markRead, "read", false, "Mark the conversation as read")
	sendCmd.Flags().BoolVarP(&groupTarget, "group", "g", false, "Target is a group id")
}

func targetRef(id string) social.ConversationRef {
	if groupTarget {
		return social.ConversationRef{Kind: social.KindGroup, ID: id}
	}
	return social.ConversationRef{Kind: social.KindDirect, ID: id}
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List direct and group conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		direct := hub.Cache().FriendConversations()
		groups := hub.Cache().GroupConversations()
		if jsonOutput {
			return printJSON(map[string]any{"direct": direct, "groups": groups})
		}
		printConversations("Direct", direct)
		printConversations("Groups", groups)
		return nil
	},
}

func printConversations(title string, convs []social.Conversation) {
	fmt.Printf("%s (%d):\n", title, len(convs))
	for _, c := range convs {
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("  [%d unread]", c.UnreadCount)
		}
		fmt.Printf("  %-24s %s  %d messages%s\n", valueOrDefault(c.Name, c.ID), c.ID, len(c.Messages), unread)
	}
}

var threadCmd = &cobra.Command{
	Use:   "thread <player-or-group-id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		ref := targetRef(args[0])
		if markRead {
			hub.Open()
			hub.ViewConversation(ref)
			defer hub.Wait()
		}
		th := hub.Thread(ref)
		if jsonOutput {
			return printJSON(th)
		}
		switch th.State {
		case social.ThreadMissing:
			fmt.Println("No conversation yet.")
			return nil
		case social.ThreadEmpty:
			fmt.Println("No messages yet.")
			return nil
		}
		self := hub.Cache().SelfID()
		for _, cl := range th.Clusters {
			who := cl.SenderID
			if who == self {
				who = "me"
			}
			fmt.Printf("%s:\n", who)
			for _, m := range cl.Messages {
				badge := ""
				if m.ID == th.StatusID && th.Status != social.StatusNone {
					badge = "  (" + string(th.Status) + ")"
				}
				fmt.Printf("  [%s] %s%s\n", m.CreatedAt, m.Body, badge)
			}
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <player-or-group-id> <message>",
	Short: "Send a direct or group message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(15 * time.Second)
		defer cancel()
		hub, _, err := loadHub(ctx)
		if err != nil {
			return err
		}
		defer hub.Destroy()

		msg, err := hub.SendMessage(ctx, targetRef(args[0]), args[1])
		if err != nil {
			return apiError(err)
		}
		if jsonOutput {
			return printJSON(msg)
		}
		fmt.Printf("Message sent.\n  Message ID: %d\n  Content:    %s\n", msg.ID, msg.Body)
		return nil
	},
}
