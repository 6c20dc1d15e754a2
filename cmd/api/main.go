package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/catalog"
	"github.com/yangruichen/cinechat/backend/internal/config"
	"github.com/yangruichen/cinechat/backend/internal/handler"
	"github.com/yangruichen/cinechat/backend/internal/nlu"
	dialogueservice "github.com/yangruichen/cinechat/backend/internal/service/dialogue"
	feedbackservice "github.com/yangruichen/cinechat/backend/internal/service/feedback"
	resolverservice "github.com/yangruichen/cinechat/backend/internal/service/resolver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Corpus problems are fatal: the service must not come up half-built.
	corpus, err := nlu.LoadCorpus(cfg.NLU.CorpusPath)
	if err != nil {
		logger.Fatal("failed to load training corpus", zap.Error(err))
	}

	model, err := nlu.BuildOrLoad(corpus, cfg.NLU.ModelPath, logger)
	if err != nil {
		logger.Fatal("failed to build intent model", zap.Error(err))
	}

	classifier, err := nlu.NewClassifier(model, newRNG(cfg.NLU.AnswerSeed))
	if err != nil {
		logger.Fatal("failed to initialize classifier", zap.Error(err))
	}

	if !cfg.Catalog.Enabled() {
		logger.Warn("CATALOG_API_KEY not set; catalog queries will fail and turns will fall back")
	}
	catalogClient := catalog.NewClient(cfg.Catalog, logger)
	resolver := resolverservice.NewService(catalogClient, logger)

	dialogueSvc := dialogueservice.NewService(classifier, resolver, dialogueservice.Options{
		Threshold:        cfg.NLU.Threshold,
		RevealChunkRunes: cfg.Dialogue.RevealChunkRunes,
		RevealInterval:   cfg.Dialogue.RevealInterval,
		RNG:              newRNG(cfg.NLU.AnswerSeed),
	}, logger)

	feedbackSvc, err := feedbackservice.NewStore(cfg.Feedback.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to initialize feedback store", zap.Error(err))
	}
	defer feedbackSvc.Close()

	router := handler.NewRouter(dialogueSvc, feedbackSvc, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newRNG(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("CineChat backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
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
