package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"prismatic/internal/config"
	"prismatic/internal/credentials"
	"prismatic/internal/lifecycle"
	"prismatic/internal/logging"
	"prismatic/internal/notifications"
	"prismatic/internal/publisher"
	"prismatic/internal/queue"
	"prismatic/internal/testsupport"
	"prismatic/internal/workflow"
)

func newPipeline(t *testing.T, cfg *config.Config, store *queue.Store) *workflow.Pipeline {
	t.Helper()
	return workflow.NewPipeline(cfg, store, logging.NewNop(), notifications.NewService(cfg))
}

func newWorker(t *testing.T, cfg *config.Config, store *queue.Store, creds credentials.Source, registry *publisher.Registry, now time.Time) *workflow.Worker {
	t.Helper()
	pipeline := newPipeline(t, cfg, store)
	return workflow.NewWorker(cfg, store, pipeline, creds, registry, notifications.NewService(cfg), logging.NewNop(),
		workflow.WithWorkerClock(func() time.Time { return now }))
}

// forceStage walks the project into the target stage through the store's
// compare-and-swap primitive. Test fixture only; production code always goes
// through Pipeline.Fire.
func forceStage(t *testing.T, store *queue.Store, projectID int64, from, to lifecycle.Stage) {
	t.Helper()
	swapped, err := store.CompareAndSwapProjectStage(context.Background(), projectID, from, to, lifecycle.ProgressFor(to))
	if err != nil {
		t.Fatalf("CompareAndSwapProjectStage failed: %v", err)
	}
	if !swapped {
		t.Fatalf("expected stage swap %s -> %s to apply", from, to)
	}
}

func projectStage(t *testing.T, store *queue.Store, projectID int64) lifecycle.Stage {
	t.Helper()
	project, err := store.GetProject(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if project == nil {
		t.Fatalf("project %d missing", projectID)
	}
	return project.Stage
}

type fakeCreds struct {
	byKey        map[string]*credentials.Credential
	cachedCalls  int
	resolveFails bool
}

func newFakeCreds() *fakeCreds {
	return &fakeCreds{byKey: make(map[string]*credentials.Credential)}
}

func (f *fakeCreds) add(account, platform, token, identity string) {
	f.byKey[account+"/"+platform] = &credentials.Credential{AccessToken: token, MemberIdentity: identity}
}

func (f *fakeCreds) Credential(_ context.Context, account, platform string) (*credentials.Credential, error) {
	cred, ok := f.byKey[account+"/"+platform]
	if !ok {
		return nil, credentials.ErrMissing
	}
	copied := *cred
	return &copied, nil
}

func (f *fakeCreds) CacheIdentity(_ context.Context, account, platform, identity string) error {
	f.cachedCalls++
	if cred, ok := f.byKey[account+"/"+platform]; ok {
		cred.MemberIdentity = identity
	}
	return nil
}

type fakePublisher struct {
	platform     string
	limit        int
	identity     string
	resolveCalls int
	resolveErr   error
	publishErr   func(content string) error
	published    []publisher.PublishRequest
	nextID       int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{platform: "linkedin", limit: 3000, identity: "urn:li:person:fake"}
}

func (f *fakePublisher) Platform() string    { return f.platform }
func (f *fakePublisher) CharacterLimit() int { return f.limit }

func (f *fakePublisher) ResolveIdentity(context.Context, string) (string, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.identity, nil
}

func (f *fakePublisher) Publish(_ context.Context, req publisher.PublishRequest) (publisher.PublishResult, error) {
	if f.publishErr != nil {
		if err := f.publishErr(req.Content); err != nil {
			return publisher.PublishResult{}, err
		}
	}
	f.published = append(f.published, req)
	f.nextID++
	return publisher.PublishResult{ExternalPostID: fmt.Sprintf("urn:li:share:%d", f.nextID)}, nil
}

// scheduledProject creates a project holding one due delivery and walks it to
// the scheduled stage.
func scheduledProject(t *testing.T, store *queue.Store, content string, at time.Time) (*queue.Project, *queue.ScheduledPost) {
	t.Helper()
	project := testsupport.NewProject(t, store, "Scheduled Project", "transcript")
	item := testsupport.ScheduleOne(t, store, project.ID, content, at)
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageScheduled)
	return project, item
}
