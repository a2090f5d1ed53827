package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"prismatic/internal/config"
	"prismatic/internal/logging"
	"prismatic/internal/notifications"
	"prismatic/internal/queue"
	"prismatic/internal/workflow"
)

// Daemon coordinates the background workers and enforces single-instance
// execution via a lock file in the data directory.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	content *workflow.ContentWorker
	publish *workflow.Worker

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queue        queue.HealthSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, content *workflow.ContentWorker, publish *workflow.Worker) (*Daemon, error) {
	if cfg == nil || store == nil || content == nil || publish == nil {
		return nil, errors.New("daemon requires config, store, content worker, and publish worker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "prismatic.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		content:  content,
		publish:  publish,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the content and publish
// workers. It fails when another instance already holds the lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another prismatic daemon instance is already running")
	}

	// Holding the lock means no other daemon owns a delivery claim, so any
	// row still in publishing was stranded by a crash mid-delivery.
	reclaimed, err := d.store.ReclaimStuckPublishing(ctx)
	if err != nil {
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(unlockErr))
		}
		return fmt.Errorf("reclaim stuck deliveries: %w", err)
	}
	if reclaimed > 0 {
		d.logger.Info("reclaimed stranded deliveries", logging.Int64("count", reclaimed))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := d.content.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("content worker exited", logging.Error(err))
		}
	}()
	go func() {
		defer d.wg.Done()
		if err := d.publish.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("publish worker exited", logging.Error(err))
		}
	}()

	d.logger.Info("prismatic daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the workers, waits for in-flight work to finish, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("prismatic daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	health, err := d.store.Health(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue health: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		Queue:        health,
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}, nil
}
