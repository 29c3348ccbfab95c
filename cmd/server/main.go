package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/subsync-go/api"
	"github.com/yourusername/subsync-go/internal/app"
	"github.com/yourusername/subsync-go/internal/infrastructure"
	"github.com/yourusername/subsync-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	identity := config.Remote.Identity()

	log.Info("Starting subsync daemon",
		zap.String("server", config.Remote.ServerURL),
		zap.String("username", config.Remote.Username),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port))

	for _, dir := range []string{
		filepath.Dir(config.Cache.DatabasePath),
		filepath.Dir(config.Queue.DatabasePath),
		config.Download.MediaDir,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	store, err := infrastructure.NewSQLiteCacheStore(config.Cache.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open cache store", zap.Error(err))
	}
	defer store.Close()

	taskStore, err := infrastructure.NewSQLiteTaskStore(config.Queue.DatabasePath)
	if err != nil {
		log.Fatal("Failed to open task store", zap.Error(err))
	}
	defer taskStore.Close()

	files, err := infrastructure.NewFileStore(config.Download.MediaDir, log)
	if err != nil {
		log.Fatal("Failed to initialize file store", zap.Error(err))
	}

	remote := infrastructure.NewRemoteClient(config.Remote)

	if config.Download.SweepOnStart {
		records, err := store.ListDownloadedMedia(context.Background(), identity)
		if err != nil {
			log.Warn("Failed to list downloaded media for sweep", zap.Error(err))
		} else if removed, err := files.SweepOrphans(records); err != nil {
			log.Warn("Orphan sweep finished with errors", zap.Error(err))
		} else if removed > 0 {
			log.Info("Swept orphaned media files", zap.Int("removed", removed))
		}
	}

	library := app.NewLibrary(store, remote, identity, log)
	transferMgr := app.NewTransferManager(taskStore, store, remote, files, &config.Download, log)
	queueMgr := app.NewQueueManager(taskStore, transferMgr, files, &config.Queue, &config.Download, log)
	queueMgr.Connectivity = func(ctx context.Context) bool {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return remote.Ping(pingCtx) == nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queueMgr.Start(ctx); err != nil {
		log.Fatal("Failed to start queue manager", zap.Error(err))
	}

	router := api.SetupRouter(library, queueMgr, remote, identity, config.Cache.PageLimit, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := queueMgr.Stop(); err != nil {
		log.Error("Error stopping queue manager", zap.Error(err))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Daemon exited")
}
