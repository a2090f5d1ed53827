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
	"prismatic/internal/queue"
	"prismatic/internal/services"
)

// InsightExtractor is the AI collaborator the content worker drives. It is
// satisfied by insights.Extractor.
type InsightExtractor interface {
	Extract(ctx context.Context, transcript string) ([]*queue.Insight, error)
	Draft(ctx context.Context, insight *queue.Insight, platform string, characterLimit int) (string, error)
}

// ContentWorker advances projects through the AI stages: it extracts
// insights for projects in processing_content and drafts posts for projects
// whose insights are approved.
type ContentWorker struct {
	cfg       *config.Config
	store     *queue.Store
	pipeline  *Pipeline
	extractor InsightExtractor
	logger    *slog.Logger

	pollInterval  time.Duration
	errorInterval time.Duration
}

// NewContentWorker constructs the content worker.
func NewContentWorker(cfg *config.Config, store *queue.Store, pipeline *Pipeline, extractor InsightExtractor, logger *slog.Logger) *ContentWorker {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &ContentWorker{
		cfg:           cfg,
		store:         store,
		pipeline:      pipeline,
		extractor:     extractor,
		logger:        logger.With(logging.String(logging.FieldComponent, "content-worker")),
		pollInterval:  time.Duration(cfg.Publishing.PollInterval) * time.Second,
		errorInterval: time.Duration(cfg.Publishing.ErrorRetryInterval) * time.Second,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 30 * time.Second
	}
	if w.errorInterval <= 0 {
		w.errorInterval = w.pollInterval
	}
	return w
}

// Run polls for work until the context is cancelled.
func (w *ContentWorker) Run(ctx context.Context) error {
	w.logger.Info("content worker started", logging.Duration("poll_interval", w.pollInterval))
	for {
		processed, err := w.ProcessNext(ctx)
		wait := w.pollInterval
		switch {
		case errors.Is(err, context.Canceled):
			return ctx.Err()
		case err != nil:
			w.logger.Error("content pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "content_pass_failed"),
			)
			wait = w.errorInterval
		case processed:
			// More work may be queued behind this project.
			wait = 0
		}

		if wait == 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// ProcessNext handles the oldest project awaiting AI work. It reports
// whether a project was handled. Permanent extraction failures are recorded
// on the project; retryable ones fail the pass so the project stays in
// processing_content and the caller backs off before the next attempt.
func (w *ContentWorker) ProcessNext(ctx context.Context) (bool, error) {
	project, err := w.store.NextProjectForStages(ctx, lifecycle.StageProcessingContent, lifecycle.StageInsightsApproved)
	if err != nil {
		return false, fmt.Errorf("select next project: %w", err)
	}
	if project == nil {
		return false, nil
	}

	logger := w.logger.With(
		logging.Int64(logging.FieldProjectID, project.ID),
		logging.String(logging.FieldStage, string(project.Stage)),
	)

	switch project.Stage {
	case lifecycle.StageProcessingContent:
		if err := w.extractInsights(ctx, logger, project); err != nil {
			return true, err
		}
	case lifecycle.StageInsightsApproved:
		w.generatePosts(ctx, logger, project)
	}
	return true, ctx.Err()
}

func (w *ContentWorker) extractInsights(ctx context.Context, logger *slog.Logger, project *queue.Project) error {
	results, err := w.extractor.Extract(ctx, project.Transcript)
	if err != nil {
		if services.Retryable(err) {
			// Transient model failures leave the project where it is.
			return fmt.Errorf("extract insights for project %d: %w", project.ID, err)
		}
		logger.Warn("insight extraction failed", logging.Error(err))
		w.failProject(ctx, logger, project.ID, lifecycle.TriggerProcessingFailed, err)
		return nil
	}
	if err := w.store.ReplaceProjectInsights(ctx, project.ID, results); err != nil {
		if services.Retryable(err) {
			return fmt.Errorf("store insights for project %d: %w", project.ID, err)
		}
		logger.Error("store insights failed", logging.Error(err))
		w.failProject(ctx, logger, project.ID, lifecycle.TriggerProcessingFailed, err)
		return nil
	}
	logger.Info("insights extracted", logging.Int("count", len(results)))
	if _, err := w.pipeline.Fire(ctx, project.ID, lifecycle.TriggerProcessingComplete); err != nil {
		logger.Warn("processing complete trigger failed", logging.Error(err))
	}
	return nil
}

func (w *ContentWorker) generatePosts(ctx context.Context, logger *slog.Logger, project *queue.Project) {
	approved, err := w.store.InsightsForProject(ctx, project.ID, queue.InsightStatusApproved)
	if err != nil {
		logger.Error("load approved insights failed", logging.Error(err))
		return
	}
	if len(approved) == 0 {
		logger.Warn("no approved insights to draft from")
		return
	}

	platforms := project.TargetPlatforms
	if len(platforms) == 0 {
		platforms = []string{"linkedin"}
	}

	var posts []*queue.Post
	for _, insight := range approved {
		for _, platform := range platforms {
			content, err := w.extractor.Draft(ctx, insight, platform, w.characterLimit(platform))
			if err != nil {
				logger.Warn("post drafting failed",
					logging.Int64("insight_id", insight.ID),
					logging.String(logging.FieldPlatform, platform),
					logging.Error(err),
				)
				continue
			}
			posts = append(posts, &queue.Post{
				ProjectID: project.ID,
				InsightID: insight.ID,
				Platform:  platform,
				Status:    queue.PostStatusDraft,
				Content:   content,
			})
		}
	}
	if len(posts) == 0 {
		logger.Warn("drafting produced no posts")
		return
	}

	if err := w.store.ReplaceProjectPosts(ctx, project.ID, posts); err != nil {
		logger.Error("store posts failed", logging.Error(err))
		return
	}
	logger.Info("posts drafted", logging.Int("count", len(posts)))
	if _, err := w.pipeline.Fire(ctx, project.ID, lifecycle.TriggerGeneratePosts); err != nil {
		logger.Warn("generate posts trigger failed", logging.Error(err))
	}
}

func (w *ContentWorker) failProject(ctx context.Context, logger *slog.Logger, projectID int64, trigger lifecycle.Trigger, cause error) {
	message := "unknown failure"
	if cause != nil {
		message = strings.TrimSpace(cause.Error())
	}
	if _, err := w.pipeline.Fire(ctx, projectID, trigger, WithErrorMessage(message)); err != nil {
		logger.Warn("failure trigger failed",
			logging.String(logging.FieldTrigger, string(trigger)),
			logging.Error(err),
		)
	}
}

func (w *ContentWorker) characterLimit(platform string) int {
	if strings.EqualFold(platform, "linkedin") && w.cfg.LinkedIn.CharacterLimit > 0 {
		return w.cfg.LinkedIn.CharacterLimit
	}
	return 3000
}
