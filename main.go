package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/handler"
	"github.com/AnTengye/contractscore/pkg/logger"
	"github.com/AnTengye/contractscore/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("contractscore stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Info("configuration loaded",
		"database", cfg.Database.Driver,
		"storage", cfg.Storage.Driver,
		"extractor", cfg.Extractor.Driver,
		"registry", cfg.Registry.Driver,
		"events", cfg.Events.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := service.OpenStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	storage, err := service.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var textExtractor service.TextExtractor
	switch cfg.Extractor.Driver {
	case "", "local":
		textExtractor = service.NewPDFTextExtractor()
	case "remote":
		textExtractor = service.NewRemoteExtractor(&cfg.Extractor.Remote, log)
	default:
		return fmt.Errorf("unknown extractor driver %q", cfg.Extractor.Driver)
	}

	registry, err := service.OpenRegistry(ctx, cfg.Registry)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	if c, ok := registry.(io.Closer); ok {
		defer c.Close()
	}

	validator, err := service.NewResultValidator()
	if err != nil {
		return err
	}

	publisher, err := service.OpenPublisher(cfg.Events, log)
	if err != nil {
		return fmt.Errorf("open event publisher: %w", err)
	}
	defer publisher.Close()

	queue := service.NewWorkQueue(log,
		service.WithWorkers(cfg.Processing.Workers),
		service.WithQueueSize(cfg.Processing.QueueSize))

	processor := service.NewProcessor(store, storage, textExtractor, registry, queue,
		service.WithMaxFileSize(cfg.Upload.MaxFileSize),
		service.WithProcessTimeout(cfg.Processing.Timeout),
		service.WithEvents(publisher),
		service.WithValidator(validator),
		service.WithLogger(log))

	inboxDone := make(chan struct{})
	if cfg.Inbox.Dir != "" {
		inbox := service.NewInboxWatcher(cfg.Inbox.Dir, cfg.Inbox.Debounce, processor, log)
		go func() {
			defer close(inboxDone)
			if err := inbox.Run(ctx); err != nil {
				log.Error("inbox watcher failed", "error", err)
			}
		}()
	} else {
		close(inboxDone)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(cfg, processor),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			<-inboxDone
			return fmt.Errorf("serve: %w", err)
		}
	}
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	<-inboxDone
	if err := queue.Shutdown(shutdownCtx); err != nil {
		log.Warn("processing jobs still running at exit", "error", err)
	}

	log.Info("server exited gracefully")
	return nil
}
