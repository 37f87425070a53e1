package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/palchat/internal/api"
	"github.com/RichardoC/palchat/internal/chat"
	"github.com/RichardoC/palchat/internal/config"
	"github.com/RichardoC/palchat/internal/db"
	"github.com/RichardoC/palchat/internal/llm"
	"github.com/RichardoC/palchat/internal/metrics"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, addr string

	cmd := &cobra.Command{
		Use:   "palchat",
		Short: "Chat service with AI replies, suggestions and translations",
		Long: `palchat serves a small set of seeded conversations over HTTP.
Messages sent by the user are answered by a simulated participant after a
short delay; replies, suggestions, translations and photo captions come from
a generative model reached through langchaingo.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(".env")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to initialize store",
			zap.Error(err),
			zap.String("driver", cfg.Store.Driver))
		return err
	}
	defer closeStore()

	if err := store.Seed(ctx, chat.SeedConversations(cfg.Chat.SelfID, time.Now())); err != nil {
		logger.Error("failed to seed conversations", zap.Error(err))
		return err
	}

	gateway, err := llm.New(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		Token:    cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout.Duration,
	}, logger, m)
	if err != nil {
		logger.Error("failed to initialize LLM service", zap.Error(err))
		return err
	}

	session := chat.NewSession(store, gateway, chat.Options{
		SelfID:     cfg.Chat.SelfID,
		ReplyDelay: cfg.Chat.ReplyDelay.Duration,
		Logger:     logger,
		Metrics:    m,
	})

	handler := api.NewHandler(session, gateway, cfg.Language(), logger)
	router := handler.Routes()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("llm_provider", cfg.LLM.Provider),
			zap.String("llm_model", cfg.LLM.Model),
			zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("failed to start server", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	// let scheduled replies and translations land before the store closes
	session.Wait()
	return nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (chat.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		database, err := db.New(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return database, func() { database.Close() }, nil
	case "memory", "":
		return chat.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
