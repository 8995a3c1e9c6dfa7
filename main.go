package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/wishingwell/backend/clustering"
	"github.com/wishingwell/backend/config"
	"github.com/wishingwell/backend/handlers"
	"github.com/wishingwell/backend/labeling"
	"github.com/wishingwell/backend/logger"
	"github.com/wishingwell/backend/middleware"
	"github.com/wishingwell/backend/moderation"
	"github.com/wishingwell/backend/openai"
	"github.com/wishingwell/backend/pipeline"
	"github.com/wishingwell/backend/repository"
	"github.com/wishingwell/backend/scheduler"
	"github.com/wishingwell/backend/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	settings := config.Load()

	log, err := logger.New(settings.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Infow("Starting Wishing Well backend", "mode", settings.Mode)

	cfg, err := config.New(settings)
	if err != nil {
		log.Fatalw("Could not initialize database", "error", err)
	}
	defer cfg.Close()

	repo := repository.NewRepository(cfg.DB)

	oa, err := openai.NewClient(settings, log)
	if err != nil {
		log.Fatalw("Could not initialize OpenAI client", "error", err)
	}

	var artifacts pipeline.ArtifactStore
	if settings.ArtifactEndpoint != "" {
		store, err := storage.NewArtifactStore(settings, log)
		if err != nil {
			log.Fatalw("Could not initialize artifact store", "error", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := store.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatalw("Could not ensure artifact bucket", "error", err)
		}
		cancel()
		artifacts = store
	}

	engine := clustering.NewEngine(oa, settings, log)
	labeler := labeling.NewGenerator(oa, log)
	pipe := pipeline.New(repo, engine, labeler, artifacts, settings, log)

	interval := time.Duration(settings.BatchIntervalMinutes) * time.Minute
	sched := scheduler.New(pipe, interval, log)
	if settings.EnableScheduler {
		sched.Start()
	}

	gate := moderation.NewGate(oa, log)

	if settings.Mode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(settings.CORSOrigins))
	router.Use(middleware.RequestLogger(log))

	handler := handlers.NewHandler(repo, gate, pipe, sched, settings, log)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + settings.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("Listening", "port", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("Server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	if sched.Running() {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}
	log.Info("Server stopped")
}
