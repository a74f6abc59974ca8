package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/isuru709/TorrentFlow-x365/internal/archive"
	"github.com/isuru709/TorrentFlow-x365/internal/config"
	"github.com/isuru709/TorrentFlow-x365/internal/engine"
	"github.com/isuru709/TorrentFlow-x365/internal/fileserve"
	apphttp "github.com/isuru709/TorrentFlow-x365/internal/http"
	"github.com/isuru709/TorrentFlow-x365/internal/ingest"
	"github.com/isuru709/TorrentFlow-x365/internal/monitor"
	"github.com/isuru709/TorrentFlow-x365/internal/push"
	"github.com/isuru709/TorrentFlow-x365/internal/registry"
	"github.com/isuru709/TorrentFlow-x365/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	for _, dir := range []string{cfg.Download.DataDir, cfg.Download.TorrentDir, cfg.Download.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("create directory %s: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := engine.NewGateway(engine.Options{
		ListenPort:         cfg.Engine.ListenPort,
		MaxConnsPerJob:     cfg.Engine.MaxConnsPerJob,
		Seed:               cfg.Engine.Seed,
		DisableDHT:         cfg.Engine.DisableDHT,
		PeerTurnoverCutoff: cfg.Engine.PeerTurnoverCutoff,
		Logger:             logger,
	})
	if err != nil {
		logger.Fatalf("start transfer engine: %v", err)
	}
	logger.Infof("transfer engine listening on port %d", cfg.Engine.ListenPort)

	cache := archive.NewCache(cfg.Download.TempDir, logger)
	reg := registry.New(cache, logger)
	hub := push.NewHub(logger)

	mon := monitor.New(monitor.Config{
		Interval: time.Duration(cfg.Monitor.IntervalMS) * time.Millisecond,
		Logger:   logger,
	}, reg, cache, hub)
	mon.Start(ctx)

	fetcher := ingest.NewFetcher(engine.PublicTrackers(), logger)
	jobs := service.NewJobService(service.Config{
		DownloadRoot: cfg.Download.DataDir,
		TorrentDir:   cfg.Download.TorrentDir,
		Trackers:     engine.PublicTrackers(),
		Logger:       logger,
	}, gateway, reg, fetcher, mon.Nudge)

	files := fileserve.New(reg, cache)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(jobs, files, hub, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	mon.Stop()
	gateway.Close()

	logger.Info("bye")
}
