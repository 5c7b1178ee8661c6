package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/ibradecode/config"
	"github.com/yoockh/ibradecode/internal/api/handlers"
	"github.com/yoockh/ibradecode/internal/api/response"
	"github.com/yoockh/ibradecode/internal/api/routes"
	"github.com/yoockh/ibradecode/internal/cache"
	"github.com/yoockh/ibradecode/internal/logger"
	"github.com/yoockh/ibradecode/internal/providers/llm"
	"github.com/yoockh/ibradecode/internal/ratelimit"
	"github.com/yoockh/ibradecode/internal/repositories/sqldb"
	"github.com/yoockh/ibradecode/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "ibradecode",
		Short:         "Prompt to code pipeline API backed by Ollama",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE:  runMigrate,
		},
	)

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("fatal")
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	db, err := config.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	n, err := sqldb.Migrate(cmd.Context(), db, log)
	if err != nil {
		return err
	}
	log.WithField("applied", n).Info("migrations complete")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := config.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if _, err := sqldb.Migrate(ctx, db, log); err != nil {
		return err
	}
	repo := sqldb.NewConversationRepo(db)
	if n, err := repo.Count(ctx); err == nil {
		log.WithField("conversations", n).Info("database ready")
	}

	// Cache
	var c cache.Cache
	rdb, err := config.NewRedis(ctx, cfg)
	switch {
	case err != nil:
		log.WithError(err).Warn("redis unavailable, using in-process cache")
		c = cache.NewMemoryCache()
	case rdb == nil:
		c = cache.NewMemoryCache()
	default:
		defer rdb.Close()
		log.Info("redis connected")
		c = cache.NewRedisCache(rdb, "ibradecode:")
	}

	// Upstream and services
	ollama := llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.OllamaTimeout, log)
	pipeline := services.NewPipelineService(ollama, services.PipelineModels{
		Summarizer: cfg.SummarizerModel,
		Optimizer:  cfg.OptimizerModel,
		Coder:      cfg.CoderModel,
	}, log)
	convos := services.NewConversationService(repo)
	modelSvc := services.NewModelService(ollama, c, cfg.ModelsCacheTTL, log)

	tr := response.NewTranslator(cfg.IsProduction(), log)
	limiter := ratelimit.NewFixedWindow(cfg.RateLimitMax, cfg.RateLimitWindow)
	go limiter.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return err
	}
	routes.RegisterRoutes(r, routes.Deps{
		Pipeline:   handlers.NewPipelineHandler(pipeline, convos, tr, log),
		Models:     handlers.NewModelHandler(modelSvc, tr),
		Health:     handlers.NewHealthHandler(ollama, tr),
		Limiter:    limiter,
		Translator: tr,
		Logger:     log,
		APIKey:     cfg.APIKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"env":    cfg.Env,
			"ollama": ollama.BaseURL(),
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
