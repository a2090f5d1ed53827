package workflow_test

import (
	"context"
	"errors"
	"testing"

	"prismatic/internal/config"
	"prismatic/internal/lifecycle"
	"prismatic/internal/logging"
	"prismatic/internal/queue"
	"prismatic/internal/services"
	"prismatic/internal/testsupport"
	"prismatic/internal/workflow"
)

type stubExtractor struct {
	insights   []*queue.Insight
	extractErr error
	draftErr   error
	drafted    int
}

func (s *stubExtractor) Extract(context.Context, string) ([]*queue.Insight, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	return s.insights, nil
}

func (s *stubExtractor) Draft(_ context.Context, insight *queue.Insight, platform string, _ int) (string, error) {
	if s.draftErr != nil {
		return "", s.draftErr
	}
	s.drafted++
	return "drafted for " + platform + ": " + insight.Summary, nil
}

func newContentWorker(t *testing.T, cfg *config.Config, store *queue.Store, extractor workflow.InsightExtractor) *workflow.ContentWorker {
	t.Helper()
	pipeline := newPipeline(t, cfg, store)
	return workflow.NewContentWorker(cfg, store, pipeline, extractor, logging.NewNop())
}

func TestProcessNextExtractsInsights(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "Extraction", "a transcript")
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageProcessingContent)

	stub := &stubExtractor{insights: []*queue.Insight{
		{Status: queue.InsightStatusPending, Summary: "first", Score: 0.9},
		{Status: queue.InsightStatusPending, Summary: "second", Score: 0.7},
	}}
	worker := newContentWorker(t, cfg, store, stub)

	processed, err := worker.ProcessNext(ctx)
	if err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if !processed {
		t.Fatal("expected a project to be processed")
	}
	if got := projectStage(t, store, project.ID); got != lifecycle.StageInsightsReady {
		t.Fatalf("expected insights_ready, got %s", got)
	}
	stored, err := store.InsightsForProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("InsightsForProject failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored insights, got %d", len(stored))
	}
}

func TestProcessNextExtractionFailureReturnsProject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "Bad Extraction", "a transcript")
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageProcessingContent)

	extractErr := services.Wrap(services.ErrValidation, "insights", "extract", "transcript is empty", nil)
	worker := newContentWorker(t, cfg, store, &stubExtractor{extractErr: extractErr})
	if _, err := worker.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}

	fetched, err := store.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if fetched.Stage != lifecycle.StageRawContent {
		t.Fatalf("expected project returned to raw_content, got %s", fetched.Stage)
	}
	if fetched.ErrorMessage == "" {
		t.Fatal("expected failure reason recorded on project")
	}
}

func TestProcessNextTransientExtractionFailureRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "Flaky Extraction", "a transcript")
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageProcessingContent)

	extractErr := services.Wrap(services.ErrTransient, "insights", "extract", "completion", errors.New("http 503"))
	stub := &stubExtractor{extractErr: extractErr}
	worker := newContentWorker(t, cfg, store, stub)

	processed, err := worker.ProcessNext(ctx)
	if !processed {
		t.Fatal("expected the project to be picked up")
	}
	if err == nil || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected a transient pass error, got %v", err)
	}

	// The project keeps its stage so the next pass can try again.
	if got := projectStage(t, store, project.ID); got != lifecycle.StageProcessingContent {
		t.Fatalf("expected project still in processing_content, got %s", got)
	}

	stub.extractErr = nil
	stub.insights = []*queue.Insight{{Status: queue.InsightStatusPending, Summary: "recovered", Score: 0.8}}
	if _, err := worker.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext retry failed: %v", err)
	}
	if got := projectStage(t, store, project.ID); got != lifecycle.StageInsightsReady {
		t.Fatalf("expected insights_ready after retry, got %s", got)
	}
}

func TestProcessNextDraftsPostsPerPlatform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "Drafting", "a transcript")
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageInsightsApproved)
	if err := store.ReplaceProjectInsights(ctx, project.ID, []*queue.Insight{
		{Status: queue.InsightStatusApproved, Summary: "approved one", Score: 0.9},
		{Status: queue.InsightStatusApproved, Summary: "approved two", Score: 0.8},
		{Status: queue.InsightStatusRejected, Summary: "rejected", Score: 0.1},
	}); err != nil {
		t.Fatalf("ReplaceProjectInsights failed: %v", err)
	}

	stub := &stubExtractor{}
	worker := newContentWorker(t, cfg, store, stub)
	if _, err := worker.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}

	if got := projectStage(t, store, project.ID); got != lifecycle.StagePostsGenerated {
		t.Fatalf("expected posts_generated, got %s", got)
	}
	posts, err := store.PostsForProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("PostsForProject failed: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected a post per approved insight, got %d", len(posts))
	}
	for _, post := range posts {
		if post.Status != queue.PostStatusDraft {
			t.Fatalf("expected draft posts, got %s", post.Status)
		}
		if post.Platform != "linkedin" {
			t.Fatalf("unexpected platform %q", post.Platform)
		}
	}
	if stub.drafted != 2 {
		t.Fatalf("expected 2 drafting calls, got %d", stub.drafted)
	}
}

func TestProcessNextAutoApprovesDraftedPosts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, store, "Auto Posts", "a transcript")
	project.AutoApprovePosts = true
	if err := store.UpdateProjectSettings(ctx, project); err != nil {
		t.Fatalf("UpdateProjectSettings failed: %v", err)
	}
	forceStage(t, store, project.ID, lifecycle.StageRawContent, lifecycle.StageInsightsApproved)
	if err := store.ReplaceProjectInsights(ctx, project.ID, []*queue.Insight{
		{Status: queue.InsightStatusApproved, Summary: "approved", Score: 0.9},
	}); err != nil {
		t.Fatalf("ReplaceProjectInsights failed: %v", err)
	}

	worker := newContentWorker(t, cfg, store, &stubExtractor{})
	if _, err := worker.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}

	if got := projectStage(t, store, project.ID); got != lifecycle.StagePostsApproved {
		t.Fatalf("expected auto-approval to land in posts_approved, got %s", got)
	}
	approved, err := store.PostsForProject(ctx, project.ID, queue.PostStatusApproved)
	if err != nil {
		t.Fatalf("PostsForProject failed: %v", err)
	}
	if len(approved) != 1 {
		t.Fatalf("expected 1 approved post, got %d", len(approved))
	}
}

func TestProcessNextIdleQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	worker := newContentWorker(t, cfg, store, &stubExtractor{})
	processed, err := worker.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if processed {
		t.Fatal("expected no work on an empty queue")
	}
}
