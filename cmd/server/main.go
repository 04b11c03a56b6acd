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

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/advice"
	api "github.com/yourname/sleepcoach/internal/api"
	"github.com/yourname/sleepcoach/internal/config"
	"github.com/yourname/sleepcoach/internal/service"
	"github.com/yourname/sleepcoach/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close storage: %v", err)
		}
	}()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		logger.Fatalf("failed to init generator: %v", err)
	}

	profiles := service.NewProfileService(store, logger)
	profiles.Start(ctx)

	adv := advice.NewService(store, gen, profiles, logger, advice.Options{
		MaxRunes:      cfg.AdviceMaxRunes,
		PromptChars:   cfg.AdvicePromptChars,
		Language:      cfg.AdviceLanguage,
		Timeout:       cfg.AdviceTimeout,
		RatePerMinute: cfg.AdviceRatePerMinute,
		GateWindow:    time.Duration(cfg.MedicationGateDays) * 24 * time.Hour,
	})
	defer adv.Close()

	records := service.NewRecordService(store, adv, logger)
	app := &api.Services{
		Log:        logger,
		RecordSvc:  records,
		ProfileSvc: profiles,
		PeriodSvc:  service.NewPeriodService(records, adv, adv),
		RefSvc:     service.NewReferenceService(store, logger),
		AdviceSvc:  adv,
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on %s (storage=%s, provider=%s)", cfg.HTTPAddr, cfg.StorageBackend, cfg.LLMProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (advice.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return advice.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.ProviderMock:
		return advice.NewMockGenerator("Keep your wake time steady and leave the bed when you cannot sleep."), nil
	default:
		return advice.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
}
