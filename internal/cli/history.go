package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdfchat-backend/internal/services"
)

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <history.json>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := services.LoadChatHistory(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if history.Len() == 0 {
				fmt.Fprintln(out, "No conversation saved.")
				return nil
			}
			for i, chat := range history.Chats() {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "[%d] Q: %s\n", i+1, chat.Query)
				fmt.Fprintf(out, "    A: %s\n", chat.ResponseText())
			}
			return nil
		},
	}
}
