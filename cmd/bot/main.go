package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"banner-text-advisor/internal/advisor"
	"banner-text-advisor/internal/config"
	"banner-text-advisor/internal/gemini"
	"banner-text-advisor/internal/handlers"
	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/httpclient"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/mediagroup"
	"banner-text-advisor/internal/session"
	"banner-text-advisor/internal/suggestion"
	"banner-text-advisor/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gem, err := gemini.New(ctx, gemini.Options{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		Temperature: &cfg.GeminiTemperature,
		BaseURL:     cfg.GeminiBaseURL,
		APIVersion:  cfg.GeminiAPIVersion,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("gemini init failed", "err", err)
		os.Exit(1)
	}

	adv, err := advisor.New(advisor.Options{
		Model: gem,
		Interpreter: suggestion.NewInterpreter(suggestion.InterpreterOptions{
			Policy: suggestion.ParsePolicy(cfg.ParsePolicy),
			Logger: logger,
		}),
		Structured: cfg.StructuredOutput,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("advisor init failed", "err", err)
		os.Exit(1)
	}

	sessions, closeStore, err := session.Open(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		logger.Error("session store init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()
	if mem, ok := sessions.(*session.MemoryStore); ok {
		go mem.RunSweeper(ctx, time.Minute)
	}

	rec, err := newRecorder(cfg, logger)
	if err != nil {
		logger.Error("history init failed", "err", err)
		os.Exit(1)
	}

	handler, err := handlers.New(handlers.Options{
		Telegram:       tg,
		Advisor:        adv,
		Sessions:       sessions,
		History:        rec,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Error("handler init failed", "err", err)
		os.Exit(1)
	}

	var inflight sync.WaitGroup
	sem := make(chan struct{}, cfg.MaxConcurrent)
	run := func(fn func(ctx context.Context)) bool {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return false
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			fn(reqCtx)
		}()
		return true
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush: func(group mediagroup.Group) {
			run(func(ctx context.Context) { handler.HandleMediaGroup(ctx, group) })
		},
	})
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started",
		"username", tg.Username(),
		"model", cfg.GeminiModel,
		"redis", cfg.RedisURL != "",
		"history", cfg.HistoryEnabled(),
		"parse_policy", cfg.ParsePolicy,
	)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})

	defer func() {
		tg.StopUpdates()
		aggregator.Stop()
		inflight.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			if !run(func(ctx context.Context) {
				if err := handler.HandleUpdate(ctx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "update_id", update.UpdateID, "err", err)
				}
			}) {
				return
			}
		}
	}
}

func newRecorder(cfg config.Config, logger *slog.Logger) (history.Recorder, error) {
	if !cfg.HistoryEnabled() {
		return history.Nop{}, nil
	}
	rec, err := history.NewSupabaseRecorder(history.SupabaseOptions{
		URL:    cfg.SupabaseURL,
		Key:    cfg.SupabaseServiceKey,
		Table:  cfg.SupabaseHistoryTable,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
