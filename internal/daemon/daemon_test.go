package daemon_test

import (
	"context"
	"testing"
	"time"

	"prismatic/internal/credentials"
	"prismatic/internal/daemon"
	"prismatic/internal/lifecycle"
	"prismatic/internal/notifications"
	"prismatic/internal/publisher"
	"prismatic/internal/queue"
	"prismatic/internal/testsupport"
	"prismatic/internal/workflow"
)

type idleExtractor struct{}

func (idleExtractor) Extract(context.Context, string) ([]*queue.Insight, error) {
	return nil, nil
}

func (idleExtractor) Draft(context.Context, *queue.Insight, string, int) (string, error) {
	return "", nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	notifier := notifications.NewService(cfg)
	pipeline := workflow.NewPipeline(cfg, store, nil, notifier)
	content := workflow.NewContentWorker(cfg, store, pipeline, idleExtractor{}, nil)
	publish := workflow.NewWorker(cfg, store, pipeline, credentials.NewStoreSource(store), publisher.NewRegistry(), notifier, nil)

	d, err := daemon.New(cfg, store, nil, content, publish)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail while the first holds the lock.
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonStartReclaimsStuckDeliveries(t *testing.T) {
	d, store := newDaemon(t)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	project := testsupport.NewProject(t, store, "Reclaim", "raw transcript")
	// Not yet due, so the running workers leave the reclaimed row alone.
	item := testsupport.ScheduleOne(t, store, project.ID, "stranded", time.Now().UTC().Add(time.Hour))

	claimed, err := store.ClaimScheduledPost(ctx, item.ID)
	if err != nil {
		t.Fatalf("ClaimScheduledPost failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected claim to succeed")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	d.Stop()

	sp, err := store.GetScheduledPost(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetScheduledPost failed: %v", err)
	}
	if sp.Status != queue.ScheduleStatusPending {
		t.Fatalf("expected stranded delivery back in pending, got %s", sp.Status)
	}
}

func TestDaemonStatusCounts(t *testing.T) {
	d, store := newDaemon(t)
	t.Cleanup(func() { d.Close() })

	ctx := context.Background()
	project := testsupport.NewProject(t, store, "Launch recap", "raw transcript")
	if project.Stage != lifecycle.StageRawContent {
		t.Fatalf("unexpected initial stage %s", project.Stage)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Queue.Projects != 1 || status.Queue.ActiveProjects != 1 {
		t.Fatalf("unexpected queue counts: %+v", status.Queue)
	}
	if status.DatabasePath == "" || status.LockFilePath == "" {
		t.Fatal("expected database and lock paths to be populated")
	}
}
