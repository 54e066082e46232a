package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/patchlib/clipsight/internal/batch"
	"github.com/patchlib/clipsight/internal/catalog"
	"github.com/patchlib/clipsight/internal/config"
	"github.com/patchlib/clipsight/internal/download"
	"github.com/patchlib/clipsight/internal/httpapi"
	"github.com/patchlib/clipsight/internal/inference"
	"github.com/patchlib/clipsight/internal/media"
	"github.com/patchlib/clipsight/internal/persistence"
	"github.com/patchlib/clipsight/internal/pipeline"
	"github.com/patchlib/clipsight/internal/service"
	"github.com/patchlib/clipsight/internal/transcribe"
	"github.com/patchlib/clipsight/internal/validate"
	"github.com/patchlib/clipsight/pkg/log"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("config: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		log.Fatal("store: %v", err)
	}
	defer store.Close()

	downloadTimeout := time.Duration(cfg.Pipeline.DownloadTimeout) * time.Second
	extractor := download.NewExtractorStrategy(downloadTimeout)
	if !extractor.Available() {
		log.Warn("yt-dlp not found on PATH, platform extraction disabled")
	}
	direct := download.NewDirectStrategy(downloadTimeout, cfg.Pipeline.MaxDownloadBytes)
	downloader := download.NewDownloader(extractor, direct)

	validator := validate.New(extractor)

	client := inference.NewClient(inference.Config{
		APIURL:          cfg.Inference.APIURL,
		APIKey:          cfg.Inference.APIKey,
		VisionModel:     cfg.Inference.VisionModel,
		TranscribeModel: cfg.Inference.TranscribeModel,
		MaxTokens:       cfg.Inference.MaxTokens,
		Temperature:     cfg.Inference.Temperature,
		Timeout:         time.Duration(cfg.Inference.Timeout) * time.Second,
	})

	sampler := media.NewSampler(float64(cfg.Pipeline.FrameIntervalSeconds), cfg.Pipeline.MaxFrames)
	transcriber := transcribe.NewTranscriber(client)

	pipe := pipeline.New(validator, downloader, sampler, transcriber, client, store, cfg.Pipeline.WorkDir)
	tracker := batch.NewTracker(pipe, store, cfg.Batch.Workers)

	jobTTL := time.Duration(cfg.Batch.JobTTLHours) * time.Hour
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Batch.JobPurgeCron, func() {
		tracker.PurgeExpired(context.Background(), jobTTL)
	}); err != nil {
		log.Fatal("purge schedule %q: %v", cfg.Batch.JobPurgeCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	cat := catalog.NewClient(cfg.Catalog.APIURL, cfg.Catalog.APIKey)
	svc := service.New(pipe, tracker, store, cat)
	server := httpapi.NewServer(cfg.Server.Addr, svc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("server: %v", err)
		}
	case sig := <-stop:
		log.Info("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown: %v", err)
		}
	}
}
