package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pdfchat-backend/internal/rag"
)

func (a *app) forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <file>",
		Short: "Remove a document from the vector store",
		Long: `Forget deletes the indexed chunks of a document so the next question
about it embeds it again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			text, err := a.extractor.OpenFile(args[0])
			if err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}

			retriever, err := rag.FromConfig(cfg)
			if err != nil {
				return err
			}
			id := rag.DocumentID(text)
			if err := retriever.Forget(cmd.Context(), id); err != nil {
				return fmt.Errorf("forget %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot document %s\n", id)
			return nil
		},
	}
}
