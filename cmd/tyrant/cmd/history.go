package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tyrant/src/message"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage conversation history",
	Long: `Manage stored conversations.

Examples:
  tyrant history list
  tyrant history show <id>
  tyrant history feedback <id> "too soft"
  tyrant history delete <id>`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := requireHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		convs, err := store.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No conversations yet")
			return nil
		}

		for _, c := range convs {
			voice := c.Personality
			if voice == "" {
				voice = "default"
			}
			fmt.Printf("%s  %s  %-14s %3d msgs  %s\n",
				c.ID,
				c.UpdatedAt.Format("2006-01-02 15:04"),
				voice,
				c.MessageCount,
				dimStyle.Render(truncate(c.Feedback, 40)))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := requireHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		conv, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		msgs, err := store.Messages(ctx, conv.ID, 0)
		if err != nil {
			return err
		}

		pack, _ := loadRegistry().Get(conv.Personality)
		fmt.Println(headerStyle.Render(conv.ID) + " " + dimStyle.Render(conv.CreatedAt.Format("2006-01-02 15:04")))
		for _, m := range msgs {
			label := userStyle.Render("you")
			if m.Role == message.RoleAssistant {
				label = voiceLabel(pack)
			}
			fmt.Printf("%s > %s\n\n", label, m.Text())
		}
		if conv.Feedback != "" {
			fmt.Println(dimStyle.Render("feedback: " + conv.Feedback))
		}
		return nil
	},
}

var historyFeedbackCmd = &cobra.Command{
	Use:   "feedback <id> <text...>",
	Short: "Attach feedback to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := requireHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetFeedback(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Println("Feedback saved")
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		store, err := requireHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyFeedbackCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of conversations to show")
}
