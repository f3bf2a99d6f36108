package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sngdarren/mr-team/internal/config"
	"github.com/sngdarren/mr-team/internal/dialogue"
	"github.com/sngdarren/mr-team/internal/document"
	"github.com/sngdarren/mr-team/internal/httpapi"
	"github.com/sngdarren/mr-team/internal/janitor"
	"github.com/sngdarren/mr-team/internal/jobs"
	"github.com/sngdarren/mr-team/internal/llm"
	"github.com/sngdarren/mr-team/internal/media"
	"github.com/sngdarren/mr-team/internal/metadata"
	"github.com/sngdarren/mr-team/internal/service"
	"github.com/sngdarren/mr-team/internal/speech"
	"github.com/sngdarren/mr-team/internal/storage"
	"github.com/sngdarren/mr-team/internal/tracing"
	"github.com/sngdarren/mr-team/internal/videos"
	"github.com/sngdarren/mr-team/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

// backgroundWorker is anything that runs next to the HTTP server.
type backgroundWorker interface {
	Start(ctx context.Context) error
	Stop()
}

type queueWorker struct {
	queue *jobs.Queue
	exec  jobs.Executor
}

func (q queueWorker) Start(context.Context) error {
	q.queue.Start(q.exec)
	return nil
}

func (q queueWorker) Stop() {
	q.queue.Stop()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Log.Level), log.Format(cfg.Log.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatal("Failed to init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("Failed to flush traces: %v", err)
		}
	}()

	workers, srv, cleanup, err := build(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to build application: %v", err)
	}
	defer cleanup()

	if err := runWithComponents(ctx, cfg, workers, srv); err != nil {
		log.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
}

func build(ctx context.Context, cfg *config.Config) ([]backgroundWorker, httpServer, func(), error) {
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.WorkDir, cfg.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:       cfg.LLM.APIKey,
		APIURL:       cfg.LLM.APIURL,
		Model:        cfg.LLM.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryInitial: time.Second,
		SiteURL:      cfg.LLM.SiteURL,
		AppName:      cfg.LLM.AppName,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	speechClient, err := speech.NewClient(speech.Config{
		APIURL:       cfg.Speech.APIURL,
		Token:        cfg.Speech.Token,
		Model:        cfg.Speech.Model,
		VoiceA:       cfg.Speech.VoiceA,
		VoiceB:       cfg.Speech.VoiceB,
		Timeout:      cfg.Speech.Timeout,
		MaxRetries:   cfg.Speech.MaxRetries,
		RetryInitial: time.Second,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	cast := metadata.Cast{A: cfg.Cast.SpeakerA, B: cfg.Cast.SpeakerB}
	tool := media.NewTool(
		media.WithBinaries(cfg.Composition.FFmpegPath, cfg.Composition.FFprobePath),
		media.WithSampleRate(cfg.Composition.SampleRate),
	)

	jobRegistry := jobs.NewRegistry()
	videoRegistry := videos.NewRegistry()

	var composerOpts []service.ComposerOption
	var janitorOpts []janitor.Option
	if cfg.Storage.Enabled() {
		publisher, err := storage.NewMinioPublisher(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := publisher.EnsureBucket(ctx); err != nil {
			log.Warn("Object storage unavailable, videos stay local only: %v", err)
		} else {
			composerOpts = append(composerOpts, service.WithPublisher(publisher))
			janitorOpts = append(janitorOpts, janitor.WithRemover(publisher))
		}
	}

	composer, err := service.NewComposer(service.ComposerConfig{
		Background:    cfg.Composition.BackgroundVideo,
		AvatarA:       cfg.Composition.AvatarA,
		AvatarB:       cfg.Composition.AvatarB,
		BufferSeconds: cfg.Composition.BufferSeconds,
		AvatarScale:   cfg.Composition.AvatarScale,
		AvatarAnchor:  media.Anchor(cfg.Composition.AvatarAnchor),
		OutputDir:     cfg.Paths.OutputDir,
		Workers:       cfg.Composition.SegmentWorkers,
	}, tool, videoRegistry, jobRegistry, composerOpts...)
	if err != nil {
		return nil, nil, nil, err
	}

	generator := service.NewGenerator(
		service.GeneratorConfig{
			DialogueConcurrency: cfg.Composition.DialogueConcurrency,
			SpeechConcurrency:   cfg.Speech.Concurrency,
		},
		document.NewPDFExtractor(),
		dialogue.NewGenerator(llmClient, cast, cfg.Composition.MaxSegments),
		speechClient,
		tool,
		composer,
		jobRegistry,
	)

	queue := jobs.NewQueue(jobRegistry, cfg.Jobs.Workers)
	srv := httpapi.NewServer(queue, videoRegistry,
		httpapi.WithDirs(cfg.Paths.UploadDir, cfg.Paths.WorkDir),
		httpapi.WithMaxUploadBytes(cfg.HTTP.MaxUploadMB<<20),
	)
	sweeper := janitor.New(janitor.Config{
		Retention: cfg.Jobs.Retention,
		Schedule:  cfg.Jobs.JanitorSchedule,
		UploadDir: cfg.Paths.UploadDir,
		WorkDir:   cfg.Paths.WorkDir,
	}, jobRegistry, videoRegistry, janitorOpts...)

	workers := []backgroundWorker{
		queueWorker{queue: queue, exec: generator.Run},
		sweeper,
	}
	return workers, srv, composer.Close, nil
}

// runWithComponents starts the workers and the HTTP server and blocks until ctx is
// cancelled or the server fails, then shuts everything down in reverse order.
func runWithComponents(ctx context.Context, cfg *config.Config, workers []backgroundWorker, srv httpServer) error {
	var started []backgroundWorker
	stopAll := func() {
		for i := len(started) - 1; i >= 0; i-- {
			started[i].Stop()
		}
	}

	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			stopAll()
			return err
		}
		started = append(started, w)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe(cfg.HTTP.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	stopAll()
	return runErr
}
