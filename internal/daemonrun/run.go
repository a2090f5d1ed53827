package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"prismatic/internal/config"
	"prismatic/internal/credentials"
	"prismatic/internal/daemon"
	"prismatic/internal/insights"
	"prismatic/internal/logging"
	"prismatic/internal/notifications"
	"prismatic/internal/preflight"
	"prismatic/internal/publisher"
	"prismatic/internal/queue"
	"prismatic/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the prismatic daemon runtime loop. It blocks until the context
// is cancelled or a termination signal is received.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "prismatic.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	results := preflight.RunAll(signalCtx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed", logging.String("check", result.Name))
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if !preflight.Healthy(results) {
		return fmt.Errorf("preflight checks failed")
	}
	// Advisory only: a briefly unreachable model API should not keep the
	// publish worker from starting.
	if api := preflight.CheckInsightsAPI(signalCtx, cfg); !api.Passed {
		logger.Warn("insights API unreachable",
			logging.String("check", api.Name),
			logging.String("detail", api.Detail),
		)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "prismatic.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	notifier := notifications.NewService(cfg)
	pipeline := workflow.NewPipeline(cfg, store, logger, notifier)

	extractor := insights.NewExtractor(insights.NewClient(insights.Config{
		APIKey:         cfg.Insights.APIKey,
		BaseURL:        cfg.Insights.BaseURL,
		Model:          cfg.Insights.Model,
		Referer:        cfg.Insights.Referer,
		Title:          cfg.Insights.Title,
		TimeoutSeconds: cfg.Insights.TimeoutSeconds,
	}), cfg.Insights.MaxInsights)
	content := workflow.NewContentWorker(cfg, store, pipeline, extractor, logger)

	registry := publisher.NewRegistry(publisher.NewLinkedIn(publisher.LinkedInConfig{
		BaseURL:        cfg.LinkedIn.BaseURL,
		TimeoutSeconds: cfg.LinkedIn.RequestTimeout,
		CharacterLimit: cfg.LinkedIn.CharacterLimit,
	}))
	creds := credentials.NewStoreSource(store)
	publish := workflow.NewWorker(cfg, store, pipeline, creds, registry, notifier, logger)

	d, err := daemon.New(cfg, store, logger, content, publish)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("prismatic daemon shutting down")
	d.Stop()
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
