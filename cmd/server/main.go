// Package main runs the clips extractor HTTP server with WebSocket status push and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saru2020/ClipsExtractor/config"
	"github.com/saru2020/ClipsExtractor/internal/api"
	"github.com/saru2020/ClipsExtractor/internal/app"
	"github.com/saru2020/ClipsExtractor/internal/middleware"
	"github.com/saru2020/ClipsExtractor/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	stack, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}
	stack.Start()

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	svc := api.NewService(stack.Registry, stack.Dispatcher, logger)
	api.NewHandler(svc, stack.Hub, logger).Register(router)

	// Local object store stands in for S3 during development.
	if stack.LocalStore != nil {
		router.Static(storage.MockS3Prefix, stack.LocalStore.Root())
		logger.Info("serving local object store", zap.String("prefix", storage.MockS3Prefix))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("provider", stack.Provider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := stack.Shutdown(shutdownCtx); err != nil {
		logger.Error("job shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
