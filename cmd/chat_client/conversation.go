package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	createTitle string
	createWith  []string
)

func init() {
	rootCmd.AddCommand(createCmd, listCmd, deleteCmd)
	createCmd.Flags().StringVar(&createTitle, "title", "", "conversation title")
	createCmd.Flags().StringSliceVar(&createWith, "with", nil, "participant emails")
	deleteCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := newAPI().CreateConversation(cmd.Context(), createTitle, createWith)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", conv.ID, conv.Title, strings.Join(conv.Participants, ","))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List my conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newAPI().ListConversations(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range list {
			fmt.Printf("%s\t%s\t%d participants\n", c.ID, c.Title, len(c.Participants))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a conversation and all its messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireConversation(conversationID); err != nil {
			return err
		}
		if err := newAPI().DeleteConversation(cmd.Context(), conversationID); err != nil {
			return err
		}
		fmt.Println("deleted", conversationID)
		return nil
	},
}
