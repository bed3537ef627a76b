package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"docOptimizer/api/cache"
	"docOptimizer/api/config"
	"docOptimizer/api/database"
	"docOptimizer/api/handlers"
	"docOptimizer/api/kafka"
	"docOptimizer/api/middleware"
	"docOptimizer/api/repository"
	"docOptimizer/api/service"
	"docOptimizer/api/validation"
	"docOptimizer/worker/compressor"
	"docOptimizer/worker/metrics"
	"docOptimizer/worker/pool"
	wservice "docOptimizer/worker/service"
	"docOptimizer/worker/storage"
	"docOptimizer/worker/telemetry"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("API Service starting",
		zap.String("port", cfg.HTTP.Port),
		zap.String("env", cfg.App.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.App.Name, cfg.OTEL.Endpoint)
	if err != nil {
		logger.Fatal("Failed to init tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	db, err := database.ConnectDB(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisCache, err := database.ConnectCache(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisCache.Close()

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	store := storage.NewS3Store(storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	})

	processor := wservice.NewProcessor(
		cfg.Documents,
		compressor.NewImageCompressor(cfg.Documents, logger),
		compressor.NewPDFCompressor(cfg.Documents, logger),
		logger,
	)
	wp := pool.NewWorkerPool(cfg.Documents.WorkerCount())

	svc := service.NewDocumentService(service.Deps{
		Repo:      repository.NewPostgresRepo(db),
		Cache:     cache.NewStatusCache(redisCache),
		Producer:  producer,
		Store:     store,
		Validator: validation.NewValidator(cfg.Documents),
		Processor: processor,
		Pool:      wp,
		Topic:     cfg.Kafka.Topic,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	handlers.NewDocumentHandler(svc, cfg.Documents.MaxFileSizeBytes, logger).Register(mux)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Pool.Ping(pingCtx); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := redisCache.Ping(pingCtx); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "Content-Disposition"},
		AllowCredentials: false,
	})

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.TraceID(handler)
	handler = c.Handler(handler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Documents.Timeout() + 30*time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	wp.Wait()

	logger.Info("Server exited")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
