package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prismatic/internal/config"
)

const userAgent = "Prismatic/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyStageChanged(ctx context.Context, projectTitle, stage string) error
	NotifyPublishSucceeded(ctx context.Context, projectTitle, platform, externalID string) error
	NotifyPublishFailed(ctx context.Context, projectTitle, platform, reason string) error
	NotifyRunCompleted(ctx context.Context, attempted, published, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		stageChanges: cfg.Notifications.StageChanges,
		publishing:   cfg.Notifications.Publishing,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	stageChanges bool
	publishing   bool
	errors       bool
}

func (n *ntfyService) NotifyStageChanged(ctx context.Context, projectTitle, stage string) error {
	if !n.stageChanges {
		return nil
	}
	projectTitle = strings.TrimSpace(projectTitle)
	data := payload{
		title:   "Prismatic - Stage Changed",
		message: fmt.Sprintf("%s moved to %s", projectTitle, stage),
		tags:    []string{"prismatic", "stage", stage},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishSucceeded(ctx context.Context, projectTitle, platform, externalID string) error {
	if !n.publishing {
		return nil
	}
	projectTitle = strings.TrimSpace(projectTitle)
	message := fmt.Sprintf("Published to %s: %s", platform, projectTitle)
	if externalID = strings.TrimSpace(externalID); externalID != "" {
		message = fmt.Sprintf("%s\nPost: %s", message, externalID)
	}
	data := payload{
		title:   "Prismatic - Published",
		message: message,
		tags:    []string{"prismatic", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublishFailed(ctx context.Context, projectTitle, platform, reason string) error {
	if !n.publishing {
		return nil
	}
	projectTitle = strings.TrimSpace(projectTitle)
	data := payload{
		title:    "Prismatic - Publish Failed",
		message:  fmt.Sprintf("Failed publishing %s to %s: %s", projectTitle, platform, strings.TrimSpace(reason)),
		tags:     []string{"prismatic", "publish", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, attempted, published, failed int, duration time.Duration) error {
	if !n.publishing || attempted == 0 {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Prismatic - Publish Run Complete"
		message = fmt.Sprintf("Published %d of %d deliveries in %s", published, attempted, durationText)
	} else {
		title = "Prismatic - Publish Run Complete (with errors)"
		message = fmt.Sprintf("Published %d, failed %d of %d deliveries in %s", published, failed, attempted, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"prismatic", "publish", "run"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Prismatic - Error",
		message:  builder.String(),
		tags:     []string{"prismatic", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Prismatic - Test",
		message:  "Notification system test",
		tags:     []string{"prismatic", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStageChanged(context.Context, string, string) error             { return nil }
func (noopService) NotifyPublishSucceeded(context.Context, string, string, string) error { return nil }
func (noopService) NotifyPublishFailed(context.Context, string, string, string) error    { return nil }
func (noopService) NotifyRunCompleted(context.Context, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
