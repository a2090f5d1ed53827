package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prismatic/internal/config"
	"prismatic/internal/notifications"
)

type captured struct {
	title    string
	message  string
	tags     string
	priority string
}

func newSink(t *testing.T) (*config.Config, *[]captured) {
	t.Helper()
	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.StageChanges = true
	cfg.Notifications.Publishing = true
	cfg.Notifications.Errors = true
	return &cfg, &requests
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyStageChanged(context.Background(), "Example", "scheduled"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	cfg, requests := newSink(t)
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyStageChanged(ctx, "Quarterly Review", "publishing"); err != nil {
		t.Fatalf("NotifyStageChanged failed: %v", err)
	}
	if err := svc.NotifyPublishSucceeded(ctx, "Quarterly Review", "linkedin", "urn:li:share:42"); err != nil {
		t.Fatalf("NotifyPublishSucceeded failed: %v", err)
	}
	if err := svc.NotifyPublishFailed(ctx, "Quarterly Review", "linkedin", "platform_publish_failed: http 500"); err != nil {
		t.Fatalf("NotifyPublishFailed failed: %v", err)
	}
	if err := svc.NotifyRunCompleted(ctx, 3, 2, 1, 90*time.Second); err != nil {
		t.Fatalf("NotifyRunCompleted failed: %v", err)
	}

	got := *requests
	if len(got) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(got))
	}
	if got[0].title != "Prismatic - Stage Changed" || got[0].message != "Quarterly Review moved to publishing" {
		t.Fatalf("unexpected stage notification: %#v", got[0])
	}
	if got[1].message != "Published to linkedin: Quarterly Review\nPost: urn:li:share:42" {
		t.Fatalf("unexpected publish notification: %#v", got[1])
	}
	if got[2].priority != "high" {
		t.Fatalf("expected failure notification at high priority, got %q", got[2].priority)
	}
	if got[3].message != "Published 2, failed 1 of 3 deliveries in 1m30s" {
		t.Fatalf("unexpected run summary: %#v", got[3])
	}
	if got[3].tags != "prismatic,publish,run" {
		t.Fatalf("unexpected run tags %q", got[3].tags)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	cfg, requests := newSink(t)
	cfg.Notifications.StageChanges = false
	cfg.Notifications.Publishing = false
	svc := notifications.NewService(cfg)
	ctx := context.Background()

	if err := svc.NotifyStageChanged(ctx, "Muted", "scheduled"); err != nil {
		t.Fatalf("NotifyStageChanged failed: %v", err)
	}
	if err := svc.NotifyPublishSucceeded(ctx, "Muted", "linkedin", ""); err != nil {
		t.Fatalf("NotifyPublishSucceeded failed: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected muted notifications, got %d", len(*requests))
	}
}

func TestNtfyServiceSkipsEmptyRunSummary(t *testing.T) {
	cfg, requests := newSink(t)
	svc := notifications.NewService(cfg)

	if err := svc.NotifyRunCompleted(context.Background(), 0, 0, 0, time.Second); err != nil {
		t.Fatalf("NotifyRunCompleted failed: %v", err)
	}
	if len(*requests) != 0 {
		t.Fatalf("expected no notification for an empty run, got %d", len(*requests))
	}
}
