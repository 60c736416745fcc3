package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/novatos-ai/assistant/backend/internal/config"
	"github.com/novatos-ai/assistant/backend/internal/handler"
	"github.com/novatos-ai/assistant/backend/internal/knowledge"
	"github.com/novatos-ai/assistant/backend/internal/logging"
	"github.com/novatos-ai/assistant/backend/internal/model/profile"
	"github.com/novatos-ai/assistant/backend/internal/service/ai"
	"github.com/novatos-ai/assistant/backend/internal/service/chat"
	"github.com/novatos-ai/assistant/backend/internal/service/notify"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	assistant := profile.Seed()

	document, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return err
	}
	corpus := knowledge.NewCorpus(document, cfg.Knowledge.ChunkSize, cfg.Knowledge.Overlap)
	logger.Info("knowledge corpus indexed",
		zap.Int("chunks", corpus.Len()),
		zap.Int("chunk_size", cfg.Knowledge.ChunkSize),
		zap.Int("overlap", cfg.Knowledge.Overlap),
	)

	var generator ai.Generator
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("failed to initialize chat model, continuing without generation", zap.Error(err))
		} else if gen, err := ai.NewEinoGenerator(ctx, chatModel); err != nil {
			logger.Warn("failed to compile generation chain, continuing without generation", zap.Error(err))
		} else {
			generator = gen
			logger.Info("generation enabled", zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Info("ark credentials not configured, questions outside canned intents will get the apology reply")
	}

	responses, err := ai.LoadResponses(cfg.Assistant.ResponsesFile, ai.DefaultResponses(assistant))
	if err != nil {
		return err
	}

	orchestrator, err := ai.NewOrchestrator(ai.OrchestratorConfig{
		Generator:    generator,
		Responses:    responses,
		Chunks:       corpus.Chunks(),
		SystemPrompt: ai.BuildSystemPrompt(assistant),
		TopK:         cfg.Knowledge.TopK,
		Timeout:      cfg.AI.Timeout,
		Logger:       logger.Named("ai"),
	})
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(cfg.Notifier, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	chatService := chat.NewService(chat.ServiceConfig{
		Session: chat.SessionConfig{
			Responder:        orchestrator,
			Notifier:         notifier,
			Profile:          assistant,
			BookingOpenDelay: cfg.Session.BookingOpenDelay,
		},
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		Logger:          logger.Named("chat"),
	})
	defer chatService.Shutdown()

	router := handler.NewRouter(handler.Dependencies{
		Chat:              chatService,
		Profile:           assistant,
		CorpusSize:        corpus.Len(),
		GenerationEnabled: orchestrator.GenerationEnabled(),
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Logger:            logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("assistant backend listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv)
}

func newNotifier(cfg config.NotifierConfig, logger *zap.Logger) (notify.Notifier, func(), error) {
	noop := func() {}
	switch cfg.Kind {
	case config.NotifierSMTP:
		n, err := notify.NewMailNotifier(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       cfg.NotifyTo,
		})
		if err != nil {
			return nil, noop, err
		}
		logger.Info("booking notifications via smtp", zap.String("host", cfg.SMTPHost))
		return n, noop, nil
	case config.NotifierAMQP:
		n, err := notify.NewQueueNotifier(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, noop, fmt.Errorf("connect booking queue: %w", err)
		}
		logger.Info("booking notifications via amqp", zap.String("queue", cfg.AMQPQueue))
		return n, func() { _ = n.Close() }, nil
	default:
		return notify.NewLogNotifier(logger.Named("notify")), noop, nil
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
