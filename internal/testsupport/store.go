package testsupport

import (
	"context"
	"testing"
	"time"

	"prismatic/internal/config"
	"prismatic/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, store *queue.Store, title, transcript string) *queue.Project {
	t.Helper()

	project, err := store.NewProject(context.Background(), &queue.Project{
		Title:           title,
		Transcript:      transcript,
		TargetPlatforms: []string{"linkedin"},
		OwnerAccount:    "test-owner",
	})
	if err != nil {
		t.Fatalf("store.NewProject: %v", err)
	}
	return project
}

// NewApprovedPost creates an approved post under the project for tests.
func NewApprovedPost(t testing.TB, store *queue.Store, projectID int64, content string) *queue.Post {
	t.Helper()

	post, err := store.NewPost(context.Background(), &queue.Post{
		ProjectID: projectID,
		Platform:  "linkedin",
		Status:    queue.PostStatusApproved,
		Content:   content,
	})
	if err != nil {
		t.Fatalf("store.NewPost: %v", err)
	}
	return post
}

// ScheduleOne creates one approved post and schedules it for the given time,
// returning the scheduled delivery row.
func ScheduleOne(t testing.TB, store *queue.Store, projectID int64, content string, at time.Time) *queue.ScheduledPost {
	t.Helper()

	ctx := context.Background()
	NewApprovedPost(t, store, projectID, content)
	if _, err := store.SchedulePostsForProject(ctx, projectID, at); err != nil {
		t.Fatalf("store.SchedulePostsForProject: %v", err)
	}
	scheduled, err := store.ScheduledPostsForProject(ctx, projectID)
	if err != nil {
		t.Fatalf("store.ScheduledPostsForProject: %v", err)
	}
	if len(scheduled) == 0 {
		t.Fatal("expected a scheduled delivery")
	}
	newest := scheduled[0]
	for _, sp := range scheduled[1:] {
		if sp.ID > newest.ID {
			newest = sp
		}
	}
	return newest
}
