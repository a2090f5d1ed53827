package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"prismatic/internal/testsupport"
)

func TestScheduleListAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	project := testsupport.NewProject(t, env.store, "Scheduled", "transcript body")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	testsupport.ScheduleOne(t, env.store, project.ID, "post body", at)

	stdout, _, err := runCLI(t, env, "schedule", "list", "1")
	if err != nil {
		t.Fatalf("schedule list: %v", err)
	}
	if !strings.Contains(stdout, "pending") || !strings.Contains(stdout, "2026-03-01T09:00:00Z") {
		t.Fatalf("unexpected list output: %q", stdout)
	}

	stdout, _, err = runCLI(t, env, "schedule", "cancel", "1")
	if err != nil {
		t.Fatalf("schedule cancel: %v", err)
	}
	if !strings.Contains(stdout, "Cancelled 1") {
		t.Fatalf("unexpected cancel output: %q", stdout)
	}

	remaining, err := env.store.ScheduledPostsForProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("ScheduledPostsForProject: %v", err)
	}
	if len(remaining) != 1 || string(remaining[0].Status) != "cancelled" {
		t.Fatalf("expected cancelled delivery, got %+v", remaining[0])
	}
}

func TestScheduleRetryResetsFailures(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	project := testsupport.NewProject(t, env.store, "Retry", "transcript body")
	item := testsupport.ScheduleOne(t, env.store, project.ID, "post body", time.Now().UTC())
	if err := env.store.MarkScheduledPostFailed(ctx, item.ID, "platform_publish_failed: 502", 3); err != nil {
		t.Fatalf("MarkScheduledPostFailed: %v", err)
	}

	stdout, _, err := runCLI(t, env, "schedule", "retry")
	if err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	if !strings.Contains(stdout, "Reset 1") {
		t.Fatalf("unexpected retry output: %q", stdout)
	}

	refreshed, err := env.store.GetScheduledPost(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetScheduledPost: %v", err)
	}
	if string(refreshed.Status) != "pending" || refreshed.RetryCount != 0 {
		t.Fatalf("expected reset delivery, got %+v", refreshed)
	}
}

func TestStatusCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "No projects") || !strings.Contains(stdout, "No scheduled deliveries") {
		t.Fatalf("unexpected status output: %q", stdout)
	}
}
