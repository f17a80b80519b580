package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/rag"
	"pdfchat-backend/internal/services"
)

type askOptions struct {
	file     string
	pipeline string
	interval time.Duration
	save     string
}

func (a *app) askCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one question about a document",
		Long: `Ask runs one chat turn and replays the answer to stdout character by
character, like the web UI.

Examples:
  pdfchat ask --file data/sample.pdf "面会時間について教えてください"
  pdfchat ask --pipeline echo "hello"
  pdfchat ask --file data/sample.pdf --save history.json "要点は？"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAsk(cmd, opts, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "document to ask about")
	cmd.Flags().StringVarP(&opts.pipeline, "pipeline", "p", "", "override PDFCHAT_PIPELINE (echo, inject, rag)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override the per-character replay delay")
	cmd.Flags().StringVar(&opts.save, "save", "", "write the turn to a history.json file")
	return cmd
}

func (a *app) runAsk(cmd *cobra.Command, opts *askOptions, query string) error {
	ctx := cmd.Context()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.pipeline != "" {
		cfg.Pipeline = opts.pipeline
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.interval > 0 {
		cfg.ReplayInterval = opts.interval
	}

	var doc *models.Document
	if opts.file != "" {
		text, err := a.extractor.OpenFile(opts.file)
		if err != nil {
			return fmt.Errorf("extract %s: %w", opts.file, err)
		}
		doc = &models.Document{ID: rag.DocumentID(text), Filename: opts.file, Text: text}
		if a.verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "loaded %s (%d characters, document %s)\n", opts.file, len([]rune(text)), doc.ID)
		}
	}

	chat, closeFn, err := a.chatService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	history := &models.ChatHistory{}
	if opts.save != "" {
		if prev, err := services.LoadChatHistory(opts.save); err == nil {
			history = prev
		}
	}

	next, _, err := chat.Respond(ctx, history, query, doc)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printed := 0
	err = services.Replay(ctx, next.Clone(), chat.Interval(), func(h *models.ChatHistory) error {
		last, _ := h.Last()
		runes := []rune(last.ResponseText())
		_, err := fmt.Fprint(out, string(runes[printed:]))
		printed = len(runes)
		return err
	})
	fmt.Fprintln(out)
	if err != nil {
		return err
	}

	if opts.save != "" {
		path, err := services.SaveChatHistory(opts.save, next)
		if err != nil {
			return err
		}
		if a.verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %d turns to %s\n", next.Len(), path)
		}
	}
	return nil
}
