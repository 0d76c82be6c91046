//	@title			Pixstore API
//	@version		1.0
//	@description	Upload, fetch, replace and delete image assets.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

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

	"github.com/pixstore/service/internal/bootstrap"
	"github.com/pixstore/service/internal/config"
	"github.com/pixstore/service/internal/image"
	"github.com/pixstore/service/internal/logger"
	"github.com/pixstore/service/internal/metrics"
	"github.com/pixstore/service/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logg := logger.Service(logger.New(cfg.LogLevel), "pixstore-api")
	m := metrics.New()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repo, closeRepo, err := bootstrap.OpenRepository(ctx, cfg, logg)
	if err != nil {
		logg.WithError(err).Fatal("metadata store init failed")
	}
	defer closeRepo()

	blobs, err := bootstrap.OpenStorage(ctx, cfg, logg)
	if err != nil {
		logg.WithError(err).Fatal("object storage init failed")
	}
	cancel()

	// Wire dependencies: repository → service → handler
	ingest := image.NewIngestor(blobs, cfg.MaxFileSize, logg, m)
	imageSvc := image.NewService(repo, blobs, ingest, logg, m)
	imageHandler := image.NewHandler(imageSvc, logg)

	srv := server.New(":"+cfg.Port, server.NewRouter(server.Options{
		JWTSecret: cfg.JWTSecret,
		Images:    imageHandler,
		Metrics:   m,
		Log:       logg,
	}))

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logg.WithField("env", cfg.AppEnv).Infof("server listening on :%s", cfg.Port)
		logg.Infof("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.WithError(err).Fatal("server error")
		}
	}()

	<-quit
	logg.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.WithError(err).Error("forced shutdown")
		return
	}

	logg.Info("server stopped")
}
