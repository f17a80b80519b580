package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/database"
	"pdfchat-backend/internal/handlers"
	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/rag"
	"pdfchat-backend/internal/repository"
	"pdfchat-backend/internal/router"
	"pdfchat-backend/internal/services"
	"pdfchat-backend/internal/websocket"
	"pdfchat-backend/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, config.ParseLevel(cfg.LogLevel))
	defer closeLog()
	slog.SetDefault(logger)
	slog.Info("starting pdfchat backend", "pipeline", cfg.Pipeline, "llm_provider", cfg.LLMProvider, "qdrant_mode", cfg.QdrantMode)

	ctx := context.Background()

	// ──── Step 2: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisClients.Close()
	slog.Info("redis connected")

	// ──── Step 3: Optional PostgreSQL for history archives ────
	var archives handlers.ArchiveRepository
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool, database.Migrations()); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		archives = repository.NewArchiveRepo(pool)
		slog.Info("postgres connected, history archives enabled")
	}

	// ──── Repositories ────
	sessionRepo := repository.NewSessionRepo(redisClients.Queue, cfg.SessionTTL)
	jobRepo := repository.NewJobRepo(redisClients.Queue)

	// ──── Step 4: Language model, retriever and chat pipeline ────
	preset, err := services.LoadPreset(cfg.PresetFile, cfg.LLMModel)
	if err != nil {
		return err
	}

	var retriever *rag.Retriever
	var chatRetriever services.Retriever
	if cfg.Pipeline == config.PipelineRAG {
		if retriever, err = rag.FromConfig(cfg); err != nil {
			return fmt.Errorf("vector store initialization failed: %w", err)
		}
		chatRetriever = retriever
	}

	var llm llms.Model
	if cfg.Pipeline != config.PipelineEcho {
		model, closeLLM, err := services.NewLLM(ctx, cfg)
		if err != nil {
			return fmt.Errorf("language model initialization failed: %w", err)
		}
		defer closeLLM()
		llm = model
	}
	chat := services.NewChatService(cfg.Pipeline, llm, chatRetriever, preset, cfg.ReplayInterval)

	// ──── Step 5: Start ingest worker pool ────
	notifier := services.NewNotifier(redisClients.PubSub)
	var workerPool *worker.Pool
	if retriever != nil {
		workerPool = worker.NewPool(redisClients.Queue, retriever, sessionRepo, jobRepo, notifier, cfg.WorkerCount)
		workerPool.Start()
	}

	// ──── Step 6: WebSocket hub ────
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), sessionRepo)
	wsHub := websocket.NewHub(redisClients.PubSub, sessionAuth)

	// ──── Handlers ────
	extractor := services.NewFileExtractService()
	enqueue := func(ctx context.Context, job *models.Job) error {
		return worker.Enqueue(ctx, redisClients.Queue, job)
	}

	rateLimit, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return err
	}

	r := router.New(sessionAuth, router.Handlers{
		Session:   handlers.NewSessionHandler(sessionRepo, sessionAuth),
		Document:  handlers.NewDocumentHandler(sessionRepo, jobRepo, enqueue, extractor, cfg.StoragePath, workerPool != nil).WithExamples(preset.Examples),
		Chat:      handlers.NewChatHandler(chat, sessionRepo, archives, cfg.StoragePath, cfg.HistoryPath),
		Config:    handlers.NewConfigHandler(preset, cfg.Pipeline, extractor.SupportedFormats()),
		WebSocket: wsHub.HandleWebSocket,
	}, rateLimit, cfg.FrontendURL)

	// ──── Step 7: Start HTTP Server ────
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		// Chat responses stream for as long as the replay takes
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("shutting down")
		if workerPool != nil {
			workerPool.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	slog.Info("pdfchat backend ready", "addr", "http://localhost:"+cfg.Port, "api", "/api/v1", "ws", "/api/v1/ws")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	return nil
}
