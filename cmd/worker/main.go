package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orcazap/internal/conversation"
	"orcazap/internal/email"
	"orcazap/internal/freight"
	"orcazap/internal/messaging"
	"orcazap/internal/parser"
	"orcazap/internal/pricing"
	"orcazap/internal/processor"
	"orcazap/internal/tenant"
	"orcazap/platform/ai"
	"orcazap/platform/ai/gemini"
	"orcazap/platform/ai/openaicompat"
	"orcazap/platform/config"
	"orcazap/platform/db"
	"orcazap/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	sender := messaging.NewClient(cfg, log)
	extractor := parser.NewAIParser(buildAIProvider(ctx, cfg, log), log)

	pricingSvc := pricing.NewService(pricing.NewPGRepository(pool))
	freightSvc := freight.NewService(freight.NewPGRepository(pool))
	notifier := email.NewNotifier(tenant.NewRepository(pool), cfg, log)

	store := processor.NewStore(pool)
	proc := processor.NewProcessor(
		store,
		sender,
		extractor,
		pricingSvc,
		freightSvc,
		notifier,
		cfg.GetQuoteValidity(),
		cfg.GetMessagingWindow(),
		log,
	)

	sweeper := processor.NewSweeper(store, conversation.NewRepository(pool), cfg.GetWindowSweepInterval(), log)
	worker := processor.NewWorker(cfg, cfg, proc, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("worker stopped", "error", err)
	}
}

// buildAIProvider assembles the extraction provider chain. Returns nil when
// AI extraction is disabled, which makes the parser purely deterministic.
func buildAIProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) ai.Provider {
	if !cfg.IsAIEnabled() {
		log.Info("ai extraction disabled, using deterministic parser only")
		return nil
	}

	var providers []ai.Provider
	if cfg.GetGeminiAPIKey() != "" {
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey: cfg.GetGeminiAPIKey(),
			Model:  cfg.GetGeminiModel(),
		})
		if err != nil {
			log.Error("failed to initialize gemini provider", "error", err)
		} else {
			providers = append(providers, client)
		}
	}
	if cfg.GetOpenAICompatAPIKey() != "" {
		providers = append(providers, openaicompat.NewClient(openaicompat.Config{
			APIKey:  cfg.GetOpenAICompatAPIKey(),
			BaseURL: cfg.GetOpenAICompatBaseURL(),
			Model:   cfg.GetOpenAICompatModel(),
		}))
	}
	if len(providers) == 0 {
		log.Warn("ai extraction enabled but no provider configured")
		return nil
	}

	router := ai.NewRouter(log, providers...)
	log.Info("ai extraction enabled", "providers", len(providers))
	return router
}

// withRetry runs fn up to attempts times with quadratic backoff, honoring
// context cancellation between attempts.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
