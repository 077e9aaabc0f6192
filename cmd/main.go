package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/storyreel/storyreel/internal/config"
	"github.com/storyreel/storyreel/internal/httpapi"
	"github.com/storyreel/storyreel/internal/jobs"
	"github.com/storyreel/storyreel/internal/media"
	"github.com/storyreel/storyreel/internal/persistence"
	"github.com/storyreel/storyreel/internal/pipeline"
	"github.com/storyreel/storyreel/internal/provider"
	"github.com/storyreel/storyreel/pkg/icron"
	"github.com/storyreel/storyreel/pkg/log"
)

func main() {
	if err := run(); err != nil {
		log.Error("Service exited: %v", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))

	settings, found, err := config.LoadFileSettings(config.SettingsFilePath())
	if err != nil {
		return fmt.Errorf("load settings file: %w", err)
	}
	if found {
		log.Info("Loaded settings overlay from %s", config.SettingsFilePath())
	}
	cfg, err := config.NewFromEnv(config.WithFileSettings(settings))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	client, err := provider.New(provider.Config{
		Backend:     cfg.Provider.Backend,
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.APIURL,
		Model:       cfg.Provider.Model,
		Resolution:  cfg.Provider.Resolution,
		TimeoutSecs: cfg.Provider.Timeout,
	})
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}
	log.Info("Using %s backend, clips up to %.0fs", client.Name(), client.MaxClipSeconds())

	if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	queue := jobs.NewQueue(1, store)
	runner := pipeline.NewRunner(
		client,
		media.NewProber(),
		media.NewMerger(cfg.Server.OutputDir),
		queue,
		pipeline.Options{
			PollInterval:       time.Duration(cfg.Pipeline.PollIntervalSecs) * time.Second,
			PollMaxAttempts:    cfg.Pipeline.PollMaxAttempts,
			AspectRatio:        cfg.Pipeline.AspectRatio,
			SceneSeconds:       cfg.Pipeline.SceneSeconds,
			TargetTotalSeconds: cfg.Pipeline.TargetTotalSeconds,
		},
	)
	queue.Start(runner.Run)
	defer queue.Stop()

	scheduler := cron.New()
	retention := time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour
	if _, err := scheduler.AddFunc(cfg.Storage.PruneCronExpr, func() {
		if pruned := queue.PruneTerminalBefore(time.Now().Add(-retention)); pruned > 0 {
			log.Info("Pruned %d finished jobs older than %d days", pruned, cfg.Storage.RetentionDays)
		}
	}); err != nil {
		return fmt.Errorf("schedule prune: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	if info, err := icron.GetTriggerInfo(cfg.Storage.PruneCronExpr, time.Now()); err == nil {
		log.Info("Next job prune at %s", info.Next.Format(time.RFC3339))
	}

	server := httpapi.NewServer(queue, httpapi.WithOutputDir(cfg.Server.OutputDir))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
