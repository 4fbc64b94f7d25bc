package main

import (
	"fmt"
	"time"

	"secure_chat_service/internal/client/chatsync"
	"secure_chat_service/pkg/encrypt"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyBefore string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "number of messages")
	historyCmd.Flags().StringVar(&historyBefore, "before", "", "only messages before this RFC3339 time")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print decrypted history of a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConversation(conversationID); err != nil {
			return err
		}
		var before time.Time
		if historyBefore != "" {
			t, err := time.Parse(time.RFC3339Nano, historyBefore)
			if err != nil {
				return fmt.Errorf("--before: %w", err)
			}
			before = t
		}
		limit := historyLimit
		if limit <= 0 {
			limit = cfg.HistoryLimit
		}

		c := newAPI()
		encoded, err := c.FetchKey(cmd.Context(), conversationID)
		if err != nil {
			return err
		}
		key, err := encrypt.ParseKey(encoded)
		if err != nil {
			return err
		}
		msgs, err := c.FetchHistory(cmd.Context(), conversationID, limit, before)
		if err != nil {
			return err
		}

		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			text, err := encrypt.Open(key, m.Ciphertext, m.IV, m.Tag)
			if err != nil {
				text = chatsync.UndecryptableText
			}
			fmt.Printf("[%s] %s (%s): %s\n", m.Timestamp.Local().Format(time.DateTime), m.FromEmail, m.Status, text)
		}
		return nil
	},
}
