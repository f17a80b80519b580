package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text a document is answered from",
		Long: `Extract prints the text pdfchat reads from a document. PDF text is
cleaned the same way as on upload; unsupported formats print a warning.

Examples:
  pdfchat extract data/sample.pdf
  pdfchat extract notes.docx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.extractor.OpenFile(args[0])
			if err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
