package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd, queueFlushCmd)
	queueCmd.PersistentFlags().StringVar(&conversationID, "conversation", "", "conversation id")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or flush the offline queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued messages of a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConversation(conversationID); err != nil {
			return err
		}
		q, closeFn, err := openQueue()
		if err != nil {
			return err
		}
		defer closeFn()

		entries, err := q.ListForConversation(cmd.Context(), conversationID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%d\t%s\tretries=%d\n", e.ID, e.EnqueuedAt.Local().Format(time.DateTime), e.Retries)
		}
		fmt.Printf("%d queued\n", len(entries))
		return nil
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Connect, sync and replay queued messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConversation(conversationID); err != nil {
			return err
		}
		ctx, cancel := withSignal(cmd.Context())
		defer cancel()

		s, err := startSession(ctx, conversationID, nil)
		if err != nil {
			return err
		}
		defer s.close()

		select {
		case r := <-s.synced:
			if r.err != nil {
				return r.err
			}
			fmt.Printf("sent=%d failed=%d\n", r.res.Sent, r.res.Failed)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}
