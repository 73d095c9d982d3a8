package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aether-notes/ai"
	"aether-notes/config"
	"aether-notes/db"
	"aether-notes/handlers"
	"aether-notes/services"
	"aether-notes/token"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Production() {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Store, error) {
	if cfg.DBDriver == "memory" {
		logger.Warn("using in-memory store, data is lost on exit")
		return db.NewMemoryStore(), nil
	}
	conn, err := db.Open(ctx, cfg.DSN, logger)
	if err != nil {
		return nil, err
	}
	return db.NewMySQLStore(conn, logger), nil
}

func newServer(cfg *config.Config, store db.Store, logger *zap.Logger) *http.Server {
	aiCfg := ai.DefaultConfig(cfg.OpenAIAPIKey)
	aiCfg.BaseURL = cfg.OpenAIBaseURL
	aiCfg.Summary.Model = cfg.SummaryModel
	aiCfg.Plan.Model = cfg.PlanModel
	if cfg.OpenAIAPIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, summaries and action plans will fail")
	}

	issuer := token.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)
	router := handlers.NewRouter(handlers.RouterConfig{
		Notes:          services.NewNoteService(store, ai.NewOpenAI(aiCfg, logger), logger),
		Auth:           services.NewAuthService(store, issuer, logger),
		Verifier:       issuer,
		Health:         store,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
	})

	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// run serves until ctx is cancelled, then drains in-flight requests for at
// most cfg.ShutdownTimeout.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := newServer(cfg, store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server running", zap.String("addr", srv.Addr), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
