// Package cli provides the pdfchat command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/rag"
	"pdfchat-backend/internal/services"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries what the subcommands share.
type app struct {
	loadConfig func() (*config.Config, error)
	extractor  *services.FileExtractService
	verbose    bool
}

// NewRootCmd builds the command tree. loadConfig is called lazily by the
// commands that need configuration.
func NewRootCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	a := &app{
		loadConfig: loadConfig,
		extractor:  services.NewFileExtractService(),
	}

	root := &cobra.Command{
		Use:   "pdfchat",
		Short: "Chat with a PDF from the terminal",
		Long: `pdfchat extracts text from documents and answers questions about them
with the same pipelines as the web server (echo, inject or rag).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(a.extractCmd())
	root.AddCommand(a.askCmd())
	root.AddCommand(a.historyCmd())
	root.AddCommand(a.forgetCmd())
	return root
}

// Execute runs the CLI with configuration read from the environment.
func Execute(ctx context.Context) error {
	return NewRootCmd(config.LoadWithoutSession).ExecuteContext(ctx)
}

// chatService builds the chat pipeline selected by cfg.
func (a *app) chatService(ctx context.Context, cfg *config.Config) (*services.ChatService, func() error, error) {
	preset, err := services.LoadPreset(cfg.PresetFile, cfg.LLMModel)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	var llm llms.Model
	if cfg.Pipeline != config.PipelineEcho {
		llm, closeFn, err = services.NewLLM(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init model: %w", err)
		}
	}

	var retriever services.Retriever
	if cfg.Pipeline == config.PipelineRAG {
		r, err := rag.FromConfig(cfg)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("init retriever: %w", err)
		}
		retriever = r
	}

	return services.NewChatService(cfg.Pipeline, llm, retriever, preset, cfg.ReplayInterval), closeFn, nil
}
