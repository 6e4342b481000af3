package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"banner-text-advisor/internal/advisor"
	"banner-text-advisor/internal/config"
	"banner-text-advisor/internal/gemini"
	"banner-text-advisor/internal/history"
	"banner-text-advisor/internal/httpclient"
	"banner-text-advisor/internal/logging"
	"banner-text-advisor/internal/session"
	"banner-text-advisor/internal/suggestion"
	"banner-text-advisor/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWeb()
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

	store, closeStore, err := session.Open(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		logger.Error("session store init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = closeStore() }()

	rec, err := newRecorder(cfg, logger)
	if err != nil {
		logger.Error("history init failed", "err", err)
		os.Exit(1)
	}

	newModel := func(ctx context.Context, apiKey string) (advisor.Model, error) {
		client, err := gemini.New(ctx, gemini.Options{
			APIKey:      apiKey,
			Model:       cfg.GeminiModel,
			Temperature: &cfg.GeminiTemperature,
			BaseURL:     cfg.GeminiBaseURL,
			APIVersion:  cfg.GeminiAPIVersion,
			HTTPClient:  httpClient,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	srv, err := web.New(web.Options{
		Store:         store,
		History:       rec,
		NewModel:      newModel,
		DefaultAPIKey: cfg.GeminiAPIKey,
		Interpreter: suggestion.NewInterpreter(suggestion.InterpreterOptions{
			Policy: suggestion.ParsePolicy(cfg.ParsePolicy),
			Logger: logger,
		}),
		Structured:     cfg.StructuredOutput,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		SecureCookie:   cfg.SecureCookie,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("web init failed", "err", err)
		os.Exit(1)
	}

	go housekeeping(ctx, store, srv, logger)

	httpSrv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started",
		"addr", cfg.WebAddr,
		"model", cfg.GeminiModel,
		"default_key", cfg.GeminiAPIKey != "",
		"redis", cfg.RedisURL != "",
		"history", cfg.HistoryEnabled(),
		"parse_policy", cfg.ParsePolicy,
	)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

// housekeeping drops expired in-memory sessions and the advisors bound to
// sessions that are gone.
func housekeeping(ctx context.Context, store session.Store, srv *web.Server, logger *slog.Logger) {
	if mem, ok := store.(*session.MemoryStore); ok {
		go mem.RunSweeper(ctx, time.Minute)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := srv.Forget(ctx); dropped > 0 {
				logger.Debug("advisors pruned", "count", dropped)
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
