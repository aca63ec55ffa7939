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

	"github.com/LJTian/EdNewsHub/internal/api"
	"github.com/LJTian/EdNewsHub/internal/app"
	"github.com/LJTian/EdNewsHub/internal/config"
	"github.com/LJTian/EdNewsHub/internal/logging"
	"github.com/LJTian/EdNewsHub/internal/publisher"
	"github.com/LJTian/EdNewsHub/internal/scheduler"
	"github.com/LJTian/EdNewsHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	content, err := config.LoadContent(cfg.SourcesFile)
	if err != nil {
		logger.Error("load content config failed", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, logger)
	if err != nil {
		logger.Error("init store failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// 确保各个数据源存在
	if err := store.EnsureSources(context.Background(), content.ContentSources()); err != nil {
		logger.Warn("ensure sources failed", "error", err)
	}

	deps := app.Deps{Config: cfg, Content: content, Store: store, Logger: logger}
	if cfg.KafkaBroker != "" {
		pub := publisher.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, logger)
		defer pub.Close()
		deps.Publisher = pub
	}

	pipeline, err := app.Build(deps)
	if err != nil {
		logger.Error("init pipeline failed", "error", err)
		os.Exit(1)
	}
	agg := pipeline.Aggregator

	// 用上次持久化的快照预热缓存：重启期间宁可返回旧内容，也不返回空
	if slots, err := store.LoadSnapshots(context.Background()); err != nil {
		logger.Warn("load snapshots failed", "error", err)
	} else if len(slots) > 0 {
		agg.Restore(slots)
	}

	s, err := scheduler.New(cfg.CronSpec, agg, logger)
	if err != nil {
		logger.Error("init scheduler failed", "error", err)
		os.Exit(1)
	}
	s.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	var cache api.ResponseCache
	if store.Redis != nil {
		cache = store
	}
	api.NewServer(agg, cache, api.Options{
		UpdateToken: cfg.UpdateToken,
		RateLimit:   cfg.APIRateLimit,
		RateBurst:   cfg.APIRateBurst,
	}, logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting api server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exit", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	select {
	case <-s.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("content update still running at shutdown")
	}
}
