package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prismatic/internal/config"
	"prismatic/internal/lifecycle"
	"prismatic/internal/logging"
	"prismatic/internal/notifications"
	"prismatic/internal/queue"
	"prismatic/internal/services"
)

// ErrStageConflict reports that another actor moved the project between the
// stage read and the stage write. The caller may re-read and retry.
var ErrStageConflict = errors.New("project stage changed concurrently")

// Pipeline applies lifecycle triggers to projects. Every stage mutation in
// the system goes through Fire, which validates the transition against the
// canonical table, persists it with a compare-and-swap, and then runs the
// trigger's side effects.
type Pipeline struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
	clock    func() time.Time
}

// PipelineOption configures optional Pipeline behavior.
type PipelineOption func(*Pipeline)

// WithPipelineClock overrides the clock (used in tests).
func WithPipelineClock(clock func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewPipeline constructs the trigger application service.
func NewPipeline(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "pipeline")),
		notifier: notifier,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FireOption carries per-call data for triggers that need it.
type FireOption func(*fireOptions)

type fireOptions struct {
	scheduleAt   *time.Time
	errorMessage string
}

// WithScheduleTime sets the delivery time used when scheduling posts.
func WithScheduleTime(at time.Time) FireOption {
	return func(o *fireOptions) {
		o.scheduleAt = &at
	}
}

// WithErrorMessage records the failure reason for failure triggers.
func WithErrorMessage(message string) FireOption {
	return func(o *fireOptions) {
		o.errorMessage = message
	}
}

// Fire applies the trigger to the project and returns its new stage. An
// illegal trigger yields *lifecycle.InvalidTransitionError; losing the
// compare-and-swap to a concurrent actor yields ErrStageConflict.
func (p *Pipeline) Fire(ctx context.Context, projectID int64, trigger lifecycle.Trigger, opts ...FireOption) (lifecycle.Stage, error) {
	options := &fireOptions{}
	for _, opt := range opts {
		opt(options)
	}

	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "fire", "load project", err)
	}
	if project == nil {
		return "", services.Wrap(services.ErrNotFound, "pipeline", "fire", fmt.Sprintf("project %d", projectID), nil)
	}

	dest, progress, err := lifecycle.Fire(project.Stage, trigger)
	if err != nil {
		return "", err
	}

	swapped, err := p.store.CompareAndSwapProjectStage(ctx, projectID, project.Stage, dest, progress)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "pipeline", "fire", "persist stage", err)
	}
	if !swapped {
		return "", fmt.Errorf("%w: project %d left %s", ErrStageConflict, projectID, project.Stage)
	}

	p.logger.Info("stage transition",
		logging.Int64(logging.FieldProjectID, projectID),
		logging.String(logging.FieldStage, string(dest)),
		logging.String(logging.FieldTrigger, string(trigger)),
	)
	if err := p.notifier.NotifyStageChanged(ctx, project.Title, string(dest)); err != nil {
		p.logger.Warn("stage notification failed", logging.Error(err))
	}

	if err := p.applySideEffects(ctx, project, trigger, options); err != nil {
		return dest, err
	}

	// Auto-approve gates chain the next trigger immediately.
	switch {
	case dest == lifecycle.StageInsightsReady && project.AutoApproveInsights:
		return p.Fire(ctx, projectID, lifecycle.TriggerApproveInsights)
	case dest == lifecycle.StagePostsGenerated && project.AutoApprovePosts:
		return p.Fire(ctx, projectID, lifecycle.TriggerApprovePosts)
	}
	return dest, nil
}

func (p *Pipeline) applySideEffects(ctx context.Context, project *queue.Project, trigger lifecycle.Trigger, options *fireOptions) error {
	switch trigger {
	case lifecycle.TriggerSchedulePosts:
		at := p.scheduleTime(project, options)
		count, err := p.store.SchedulePostsForProject(ctx, project.ID, at)
		if err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "schedule", "materialize deliveries", err)
		}
		if count == 0 {
			return services.Wrap(services.ErrValidation, "pipeline", "schedule", "project has no approved posts", nil)
		}

	case lifecycle.TriggerPublishNow:
		count, err := p.store.SchedulePostsForProject(ctx, project.ID, p.clock().UTC())
		if err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "publish now", "materialize deliveries", err)
		}
		if count == 0 {
			return services.Wrap(services.ErrValidation, "pipeline", "publish now", "project has no approved posts", nil)
		}

	case lifecycle.TriggerApproveInsights:
		if _, err := p.store.SetProjectInsightStatuses(ctx, project.ID, queue.InsightStatusPending, queue.InsightStatusApproved); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "approve insights", "update insight rows", err)
		}

	case lifecycle.TriggerRejectInsights:
		if _, err := p.store.SetProjectInsightStatuses(ctx, project.ID, queue.InsightStatusPending, queue.InsightStatusRejected); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "reject insights", "update insight rows", err)
		}

	case lifecycle.TriggerApprovePosts:
		if _, err := p.store.SetProjectPostStatuses(ctx, project.ID, queue.PostStatusDraft, queue.PostStatusApproved); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "approve posts", "update post rows", err)
		}

	case lifecycle.TriggerRejectPosts:
		if _, err := p.store.SetProjectPostStatuses(ctx, project.ID, queue.PostStatusDraft, queue.PostStatusArchived); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "reject posts", "update post rows", err)
		}

	case lifecycle.TriggerCancelSchedule:
		if _, err := p.store.CancelNonTerminalForProject(ctx, project.ID); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "cancel schedule", "cancel deliveries", err)
		}
		if _, err := p.store.SetProjectPostStatuses(ctx, project.ID, queue.PostStatusScheduled, queue.PostStatusApproved); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "cancel schedule", "restore post rows", err)
		}

	case lifecycle.TriggerArchive:
		if _, err := p.store.CancelNonTerminalForProject(ctx, project.ID); err != nil {
			return services.Wrap(services.ErrTransient, "pipeline", "archive", "cancel deliveries", err)
		}

	case lifecycle.TriggerProcessingFailed, lifecycle.TriggerPublishingFailed:
		if message := strings.TrimSpace(options.errorMessage); message != "" {
			if err := p.store.SetProjectError(ctx, project.ID, message); err != nil {
				return services.Wrap(services.ErrTransient, "pipeline", "record failure", "store error message", err)
			}
		}
	}
	return nil
}

// scheduleTime resolves the delivery time: an explicit time wins, then the
// project owner's preferred posting time on its next occurrence, then now.
func (p *Pipeline) scheduleTime(project *queue.Project, options *fireOptions) time.Time {
	if options.scheduleAt != nil {
		return options.scheduleAt.UTC()
	}
	return ScheduleAtPreferredTime(project, p.clock())
}

// ScheduleAtPreferredTime computes the next occurrence of the project's
// preferred posting time (HH:MM, UTC). A missing or malformed preference
// falls back to now.
func ScheduleAtPreferredTime(project *queue.Project, now time.Time) time.Time {
	now = now.UTC()
	preferred := strings.TrimSpace(project.PreferredPostingTime)
	if preferred == "" {
		return now
	}
	parsed, err := time.Parse("15:04", preferred)
	if err != nil {
		return now
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}
