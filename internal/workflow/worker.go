package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"prismatic/internal/config"
	"prismatic/internal/credentials"
	"prismatic/internal/lifecycle"
	"prismatic/internal/logging"
	"prismatic/internal/notifications"
	"prismatic/internal/publisher"
	"prismatic/internal/queue"
	"prismatic/internal/services"
	"prismatic/internal/textutil"
)

// Failure tags stored in scheduled_posts.last_error. They name which delivery
// step failed; the rest of the message carries the detail.
const (
	TagOwnerNotFound            = "owner_not_found"
	TagCredentialMissing        = "credential_missing"
	TagIdentityResolutionFailed = "identity_resolution_failed"
	TagPlatformPublishFailed    = "platform_publish_failed"
)

// RunSummary reports one publish run.
type RunSummary struct {
	Attempted int
	Published int
	Failed    int
}

// Worker delivers due scheduled posts to their platforms. A single worker
// owns all deliveries; the claim step exists so an overlapping manual run
// cannot double-deliver.
type Worker struct {
	cfg      *config.Config
	store    *queue.Store
	pipeline *Pipeline
	creds    credentials.Source
	registry *publisher.Registry
	notifier notifications.Service
	logger   *slog.Logger
	clock    func() time.Time

	batchSize      int
	maxRetries     int
	pollInterval   time.Duration
	errorInterval  time.Duration
	publishTimeout time.Duration
}

// WorkerOption configures optional Worker behavior.
type WorkerOption func(*Worker)

// WithWorkerClock overrides the clock (used in tests).
func WithWorkerClock(clock func() time.Time) WorkerOption {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWorker constructs a publish worker.
func NewWorker(
	cfg *config.Config,
	store *queue.Store,
	pipeline *Pipeline,
	creds credentials.Source,
	registry *publisher.Registry,
	notifier notifications.Service,
	logger *slog.Logger,
	opts ...WorkerOption,
) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	w := &Worker{
		cfg:            cfg,
		store:          store,
		pipeline:       pipeline,
		creds:          creds,
		registry:       registry,
		notifier:       notifier,
		logger:         logger.With(logging.String(logging.FieldComponent, "publish-worker")),
		clock:          time.Now,
		batchSize:      cfg.Publishing.BatchSize,
		maxRetries:     cfg.Publishing.MaxRetries,
		pollInterval:   time.Duration(cfg.Publishing.PollInterval) * time.Second,
		errorInterval:  time.Duration(cfg.Publishing.ErrorRetryInterval) * time.Second,
		publishTimeout: time.Duration(cfg.Publishing.PublishTimeout) * time.Second,
	}
	if w.batchSize <= 0 {
		w.batchSize = 10
	}
	if w.maxRetries <= 0 {
		w.maxRetries = 3
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 30 * time.Second
	}
	if w.errorInterval <= 0 {
		w.errorInterval = w.pollInterval
	}
	if w.publishTimeout <= 0 {
		w.publishTimeout = 60 * time.Second
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls for due deliveries until the context is cancelled. In-flight
// items finish; cancellation is observed between items.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("publish worker started",
		logging.Duration("poll_interval", w.pollInterval),
		logging.Int("batch_size", w.batchSize),
	)
	for {
		summary, err := w.RunOnce(ctx)
		wait := w.pollInterval
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			w.logger.Error("publish run failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "publish_run_failed"),
			)
			wait = w.errorInterval
		} else if summary.Attempted > 0 {
			w.logger.Info("publish run complete",
				logging.Int("attempted", summary.Attempted),
				logging.Int("published", summary.Published),
				logging.Int("failed", summary.Failed),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RunOnce performs one publish pass: select due deliveries, deliver each in
// isolation, then reconcile project stages. Only the selection query can fail
// the run; individual delivery failures are recorded on their rows.
func (w *Worker) RunOnce(ctx context.Context) (RunSummary, error) {
	var summary RunSummary
	started := w.clock()
	now := started.UTC()

	items, err := w.store.DueScheduledPosts(ctx, now, w.batchSize, w.maxRetries)
	if err != nil {
		return summary, fmt.Errorf("select due deliveries: %w", err)
	}
	if len(items) == 0 {
		return summary, nil
	}

	projectIDs := make(map[int64]struct{})
	for _, item := range items {
		projectIDs[item.ProjectID] = struct{}{}
	}
	for projectID := range projectIDs {
		w.fireIfInStage(ctx, projectID, lifecycle.StageScheduled, lifecycle.TriggerStartPublishing, "")
	}

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		summary.Attempted++
		if w.deliver(ctx, item) {
			summary.Published++
		} else {
			summary.Failed++
		}
	}

	for projectID := range projectIDs {
		w.reconcileProject(ctx, projectID)
	}

	if err := w.notifier.NotifyRunCompleted(ctx, summary.Attempted, summary.Published, summary.Failed, w.clock().Sub(started)); err != nil {
		w.logger.Warn("run notification failed", logging.Error(err))
	}
	return summary, ctx.Err()
}

// deliver publishes one scheduled post. It reports success; failures are
// tagged and recorded on the row, never returned.
func (w *Worker) deliver(ctx context.Context, item *queue.DueItem) (published bool) {
	ctx = services.WithProjectID(ctx, item.ProjectID)
	ctx = services.WithPostID(ctx, item.Scheduled.PostID)
	ctx = services.WithPlatform(ctx, item.Scheduled.Platform)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, w.logger).With(
		logging.Int64(logging.FieldScheduledPostID, item.Scheduled.ID),
	)

	claimed, err := w.store.ClaimScheduledPost(ctx, item.Scheduled.ID)
	if err != nil {
		logger.Error("claim failed", logging.Error(err))
		return false
	}
	if !claimed {
		logger.Debug("delivery already claimed")
		return false
	}
	if ctx.Err() != nil {
		// Shutdown raced the claim; hand the row back untouched so the next
		// run picks it up without burning a retry.
		if releaseErr := w.store.ReleaseScheduledPost(context.WithoutCancel(ctx), item.Scheduled.ID); releaseErr != nil {
			logger.Error("release after cancel failed", logging.Error(releaseErr))
		}
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("delivery panicked",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "delivery_panic"),
			)
			w.recordFailure(ctx, logger, item, TagPlatformPublishFailed, fmt.Sprintf("panic: %v", r))
			published = false
		}
	}()

	pub, ok := w.registry.Get(item.Scheduled.Platform)
	if !ok {
		w.recordFailure(ctx, logger, item, TagPlatformPublishFailed, fmt.Sprintf("no publisher registered for platform %q", item.Scheduled.Platform))
		return false
	}

	owner := strings.TrimSpace(item.OwnerAccount)
	if owner == "" {
		w.recordFailure(ctx, logger, item, TagOwnerNotFound, fmt.Sprintf("project %d has no owner account", item.ProjectID))
		return false
	}

	cred, err := w.creds.Credential(ctx, owner, item.Scheduled.Platform)
	if err != nil {
		if errors.Is(err, credentials.ErrMissing) {
			w.recordFailure(ctx, logger, item, TagCredentialMissing, fmt.Sprintf("no usable credential for %s on %s", owner, item.Scheduled.Platform))
		} else {
			w.recordFailure(ctx, logger, item, TagCredentialMissing, err.Error())
		}
		return false
	}

	identity := cred.MemberIdentity
	if identity == "" {
		resolveCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
		identity, err = pub.ResolveIdentity(resolveCtx, cred.AccessToken)
		cancel()
		if err != nil {
			w.recordFailure(ctx, logger, item, TagIdentityResolutionFailed, err.Error())
			return false
		}
		if cacheErr := w.creds.CacheIdentity(ctx, owner, item.Scheduled.Platform, identity); cacheErr != nil {
			logger.Warn("identity cache write failed", logging.Error(cacheErr))
		}
	}

	content := textutil.TruncateForPlatform(item.PostContent, pub.CharacterLimit())

	publishCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	result, err := pub.Publish(publishCtx, publisher.PublishRequest{
		AccessToken:    cred.AccessToken,
		MemberIdentity: identity,
		Content:        content,
	})
	cancel()
	if err != nil {
		w.recordFailure(ctx, logger, item, TagPlatformPublishFailed, err.Error())
		return false
	}

	if err := w.store.MarkScheduledPostPublished(ctx, item.Scheduled.ID, result.ExternalPostID); err != nil {
		logger.Error("publish bookkeeping failed", logging.Error(err))
		return false
	}
	logger.Info("delivery published",
		logging.String("external_post_id", result.ExternalPostID),
		logging.String(logging.FieldEventType, "delivery_published"),
	)
	if err := w.notifier.NotifyPublishSucceeded(ctx, fmt.Sprintf("project %d", item.ProjectID), item.Scheduled.Platform, result.ExternalPostID); err != nil {
		logger.Warn("publish notification failed", logging.Error(err))
	}
	return true
}

func (w *Worker) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.DueItem, tag, detail string) {
	message := tag
	if detail = strings.TrimSpace(detail); detail != "" {
		message = tag + ": " + detail
	}
	logger.Warn("delivery failed",
		logging.String(logging.FieldFailureTag, tag),
		logging.String("detail", detail),
		logging.String(logging.FieldEventType, "delivery_failed"),
	)
	if err := w.store.MarkScheduledPostFailed(ctx, item.Scheduled.ID, message, w.maxRetries); err != nil {
		logger.Error("failure bookkeeping failed", logging.Error(err))
	}
	if err := w.notifier.NotifyPublishFailed(ctx, fmt.Sprintf("project %d", item.ProjectID), item.Scheduled.Platform, message); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

// reconcileProject feeds delivery outcomes back into the project machine.
// A publishing project whose deliveries are all settled moves forward when
// anything published, or back to scheduled when nothing did or retryable
// failures remain.
func (w *Worker) reconcileProject(ctx context.Context, projectID int64) {
	project, err := w.store.GetProject(ctx, projectID)
	if err != nil || project == nil || project.Stage != lifecycle.StagePublishing {
		return
	}

	live, retryable, exhausted, published, err := w.store.ProjectDeliveryCounts(ctx, projectID, w.maxRetries)
	if err != nil {
		w.logger.Error("delivery count failed",
			logging.Int64(logging.FieldProjectID, projectID),
			logging.Error(err),
		)
		return
	}
	if live > 0 {
		return
	}

	switch {
	case retryable > 0:
		w.fireIfInStage(ctx, projectID, lifecycle.StagePublishing, lifecycle.TriggerPublishingFailed,
			fmt.Sprintf("%d deliveries awaiting retry", retryable))
	case published == 0:
		w.fireIfInStage(ctx, projectID, lifecycle.StagePublishing, lifecycle.TriggerPublishingFailed,
			fmt.Sprintf("all deliveries failed permanently (%d exhausted)", exhausted))
	default:
		w.fireIfInStage(ctx, projectID, lifecycle.StagePublishing, lifecycle.TriggerPublishingComplete, "")
	}
}

func (w *Worker) fireIfInStage(ctx context.Context, projectID int64, stage lifecycle.Stage, trigger lifecycle.Trigger, errorMessage string) {
	project, err := w.store.GetProject(ctx, projectID)
	if err != nil || project == nil || project.Stage != stage {
		return
	}
	opts := []FireOption{}
	if errorMessage != "" {
		opts = append(opts, WithErrorMessage(errorMessage))
	}
	if _, err := w.pipeline.Fire(ctx, projectID, trigger, opts...); err != nil {
		// A concurrent transition is fine; anything else is worth a log line.
		if !errors.Is(err, ErrStageConflict) {
			var invalid *lifecycle.InvalidTransitionError
			if errors.As(err, &invalid) {
				return
			}
			w.logger.Warn("project feedback trigger failed",
				logging.Int64(logging.FieldProjectID, projectID),
				logging.String(logging.FieldTrigger, string(trigger)),
				logging.Error(err),
			)
		}
	}
}
