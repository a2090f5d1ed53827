package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prismatic/internal/lifecycle"
)

const scheduledColumns = "id, post_id, platform, scheduled_for, status, retry_count, last_error, last_attempt_at, published_at, external_post_id, created_at, updated_at"

// ErrPostNotPublishable reports an attempt to mark a scheduled post published
// while its parent post is not in an approved or scheduled state.
var ErrPostNotPublishable = errors.New("parent post is not publishable")

// SchedulePostsForProject creates pending scheduled rows for every approved
// post of the project and moves those posts to scheduled, in one transaction.
// Returns the number of deliveries scheduled.
func (s *Store) SchedulePostsForProject(ctx context.Context, projectID int64, at time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, platform FROM posts WHERE project_id = ? AND status = ? ORDER BY id`,
		projectID, PostStatusApproved)
	if err != nil {
		return 0, fmt.Errorf("select approved posts: %w", err)
	}

	type target struct {
		postID   int64
		platform string
	}
	var targets []target
	for rows.Next() {
		var t target
		if err := rows.Scan(&t.postID, &t.platform); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan approved post: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	timestamp := formatTime(time.Now().UTC())
	for _, t := range targets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scheduled_posts (post_id, platform, scheduled_for, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			t.postID,
			t.platform,
			formatTime(at),
			ScheduleStatusPending,
			timestamp,
			timestamp,
		); err != nil {
			return 0, fmt.Errorf("insert scheduled post: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
			PostStatusScheduled, timestamp, t.postID,
		); err != nil {
			return 0, fmt.Errorf("mark post scheduled: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule: %w", err)
	}
	return int64(len(targets)), nil
}

// GetScheduledPost fetches a scheduled post by identifier. Returns nil when absent.
func (s *Store) GetScheduledPost(ctx context.Context, id int64) (*ScheduledPost, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduledColumns+` FROM scheduled_posts WHERE id = ?`, id)
	sp, err := scanScheduledPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled post: %w", err)
	}
	return sp, nil
}

// DueScheduledPosts selects up to limit deliveries whose scheduled time has
// passed, ordered earliest first. Eligible rows are pending, or failed with
// retry budget remaining, and their parent post must still be approved or
// scheduled. Published, cancelled, in-flight, and retry-exhausted rows are
// never selected.
func (s *Store) DueScheduledPosts(ctx context.Context, now time.Time, limit, maxRetries int) ([]*DueItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sp.id, sp.post_id, sp.platform, sp.scheduled_for, sp.status, sp.retry_count,
                sp.last_error, sp.last_attempt_at, sp.published_at, sp.external_post_id,
                sp.created_at, sp.updated_at,
                p.content, p.status, p.project_id, pr.owner_account
         FROM scheduled_posts sp
         JOIN posts p ON p.id = sp.post_id
         JOIN projects pr ON pr.id = p.project_id
         WHERE sp.scheduled_for <= ?
           AND (sp.status = ? OR (sp.status = ? AND sp.retry_count < ?))
           AND p.status IN (?, ?)
         ORDER BY sp.scheduled_for ASC, sp.id ASC
         LIMIT ?`,
		formatTime(now),
		ScheduleStatusPending,
		ScheduleStatusFailed,
		maxRetries,
		PostStatusApproved,
		PostStatusScheduled,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due scheduled posts: %w", err)
	}
	defer rows.Close()

	var items []*DueItem
	for rows.Next() {
		item, err := scanDueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClaimScheduledPost atomically moves a row into publishing. The claim
// succeeds only while the row is still pending or failed, so two concurrent
// runs cannot both deliver the same item.
func (s *Store) ClaimScheduledPost(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scheduled_posts SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		ScheduleStatusPublishing,
		formatTime(time.Now().UTC()),
		id,
		ScheduleStatusPending,
		ScheduleStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("claim scheduled post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseScheduledPost returns a claimed row to pending without recording an
// attempt. Used when a run is cancelled before delivery starts.
func (s *Store) ReleaseScheduledPost(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE scheduled_posts SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		ScheduleStatusPending,
		formatTime(time.Now().UTC()),
		id,
		ScheduleStatusPublishing,
	)
	if err != nil {
		return fmt.Errorf("release scheduled post: %w", err)
	}
	return nil
}

// ReclaimStuckPublishing returns every publishing row to pending. A row stays
// in publishing only while a worker holds the claim, so any row found there at
// daemon startup belongs to a process that died mid-delivery. Returns the
// number of rows reclaimed.
func (s *Store) ReclaimStuckPublishing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scheduled_posts SET status = ?, updated_at = ? WHERE status = ?`,
		ScheduleStatusPending,
		formatTime(time.Now().UTC()),
		ScheduleStatusPublishing,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck publishing: %w", err)
	}
	return res.RowsAffected()
}

// MarkScheduledPostPublished records a successful delivery: status published,
// published_at stamped, prior error cleared, platform post ID stored, and the
// parent post marked published. The parent post must still be approved,
// scheduled, or already published; otherwise ErrPostNotPublishable is
// returned and nothing changes.
func (s *Store) MarkScheduledPostPublished(ctx context.Context, id int64, externalPostID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var postID int64
	var postStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT p.id, p.status FROM posts p JOIN scheduled_posts sp ON sp.post_id = p.id WHERE sp.id = ?`,
		id,
	).Scan(&postID, &postStatus)
	if err != nil {
		return fmt.Errorf("resolve parent post: %w", err)
	}
	switch PostStatus(postStatus) {
	case PostStatusApproved, PostStatusScheduled, PostStatusPublished:
	default:
		return fmt.Errorf("%w: post %d is %s", ErrPostNotPublishable, postID, postStatus)
	}

	timestamp := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx,
		`UPDATE scheduled_posts
         SET status = ?, published_at = ?, last_error = NULL, external_post_id = ?, updated_at = ?
         WHERE id = ?`,
		ScheduleStatusPublished, timestamp, nullableString(externalPostID), timestamp, id,
	); err != nil {
		return fmt.Errorf("mark scheduled post published: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET status = ?, external_post_id = ?, updated_at = ? WHERE id = ?`,
		PostStatusPublished, nullableString(externalPostID), timestamp, postID,
	); err != nil {
		return fmt.Errorf("mark post published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

// MarkScheduledPostFailed records a failed delivery: status failed, the error
// message stored verbatim, last_attempt_at stamped, and the retry counter
// advanced up to maxRetries but never past it. published_at is untouched.
func (s *Store) MarkScheduledPostFailed(ctx context.Context, id int64, message string, maxRetries int) error {
	timestamp := formatTime(time.Now().UTC())
	_, err := s.execWithRetry(
		ctx,
		`UPDATE scheduled_posts
         SET status = ?, last_error = ?, last_attempt_at = ?,
             retry_count = CASE WHEN retry_count < ? THEN retry_count + 1 ELSE retry_count END,
             updated_at = ?
         WHERE id = ?`,
		ScheduleStatusFailed,
		nullableString(message),
		timestamp,
		maxRetries,
		timestamp,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark scheduled post failed: %w", err)
	}
	return nil
}

// CancelNonTerminalForProject cancels every pending, in-flight, or failed
// delivery belonging to a project. Fired by the archive and cancel-schedule
// side effects so a post is never archived with live deliveries behind it.
func (s *Store) CancelNonTerminalForProject(ctx context.Context, projectID int64) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scheduled_posts SET status = ?, updated_at = ?
         WHERE status IN (?, ?, ?)
           AND post_id IN (SELECT id FROM posts WHERE project_id = ?)`,
		ScheduleStatusCancelled,
		formatTime(time.Now().UTC()),
		ScheduleStatusPending,
		ScheduleStatusPublishing,
		ScheduleStatusFailed,
		projectID,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled posts: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedScheduled moves failed deliveries back to pending with a fresh
// retry budget. With no IDs, every failed delivery is retried.
func (s *Store) RetryFailedScheduled(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := formatTime(time.Now().UTC())
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE scheduled_posts
             SET status = ?, retry_count = 0, last_error = NULL, updated_at = ?
             WHERE status = ?`,
			ScheduleStatusPending,
			timestamp,
			ScheduleStatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed deliveries: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, ScheduleStatusPending, timestamp, ScheduleStatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE scheduled_posts
         SET status = ?, retry_count = 0, last_error = NULL, updated_at = ?
         WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected deliveries: %w", err)
	}
	return res.RowsAffected()
}

// ScheduledPostsForProject lists every delivery for a project ordered by
// scheduled time.
func (s *Store) ScheduledPostsForProject(ctx context.Context, projectID int64) ([]*ScheduledPost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduledColumnsPrefixed+`
         FROM scheduled_posts sp
         JOIN posts p ON p.id = sp.post_id
         WHERE p.project_id = ?
         ORDER BY sp.scheduled_for, sp.id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled posts: %w", err)
	}
	defer rows.Close()

	var items []*ScheduledPost
	for rows.Next() {
		sp, err := scanScheduledPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sp)
	}
	return items, rows.Err()
}

// ProjectDeliveryCounts reports, for one project, how many deliveries remain
// live (pending or in-flight), how many failed with retry budget left, how
// many failed with the budget exhausted, and how many published.
func (s *Store) ProjectDeliveryCounts(ctx context.Context, projectID int64, maxRetries int) (live, retryable, exhausted, published int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sp.status, sp.retry_count, COUNT(1)
         FROM scheduled_posts sp
         JOIN posts p ON p.id = sp.post_id
         WHERE p.project_id = ?
         GROUP BY sp.status, sp.retry_count`,
		projectID,
	)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("delivery counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status ScheduleStatus
		var retries, count int
		if err := rows.Scan(&status, &retries, &count); err != nil {
			return 0, 0, 0, 0, err
		}
		switch status {
		case ScheduleStatusPending, ScheduleStatusPublishing:
			live += count
		case ScheduleStatusFailed:
			if retries < maxRetries {
				retryable += count
			} else {
				exhausted += count
			}
		case ScheduleStatusPublished:
			published += count
		}
	}
	return live, retryable, exhausted, published, rows.Err()
}

// ScheduleStats returns a count of deliveries grouped by status.
func (s *Store) ScheduleStats(ctx context.Context) (map[ScheduleStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM scheduled_posts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("schedule stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ScheduleStatus]int)
	for rows.Next() {
		var status ScheduleStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	var health HealthSummary

	projectStats, err := s.ProjectStats(ctx)
	if err != nil {
		return health, err
	}
	for stage, count := range projectStats {
		health.Projects += count
		if stage != lifecycle.StageArchived && stage != lifecycle.StagePublished {
			health.ActiveProjects += count
		}
	}

	scheduleStats, err := s.ScheduleStats(ctx)
	if err != nil {
		return health, err
	}
	health.PendingDue = scheduleStats[ScheduleStatusPending]
	health.FailedDeliveries = scheduleStats[ScheduleStatusFailed]
	health.PublishedPosts = scheduleStats[ScheduleStatusPublished]
	return health, nil
}

const scheduledColumnsPrefixed = "sp.id, sp.post_id, sp.platform, sp.scheduled_for, sp.status, sp.retry_count, sp.last_error, sp.last_attempt_at, sp.published_at, sp.external_post_id, sp.created_at, sp.updated_at"

func scanScheduledPost(scanner interface{ Scan(dest ...any) error }) (*ScheduledPost, error) {
	var (
		id            int64
		postID        int64
		platform      string
		scheduledRaw  sql.NullString
		statusStr     string
		retryCount    sql.NullInt64
		lastError     sql.NullString
		lastAttempt   sql.NullString
		publishedRaw  sql.NullString
		externalID    sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&postID,
		&platform,
		&scheduledRaw,
		&statusStr,
		&retryCount,
		&lastError,
		&lastAttempt,
		&publishedRaw,
		&externalID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sp := &ScheduledPost{
		ID:             id,
		PostID:         postID,
		Platform:       platform,
		Status:         ScheduleStatus(statusStr),
		RetryCount:     int(retryCount.Int64),
		LastError:      lastError.String,
		ExternalPostID: externalID.String,
	}
	if scheduled, err := parseTimeString(scheduledRaw.String); err == nil {
		sp.ScheduledFor = scheduled
	}
	if lastAttempt.Valid {
		if attempt, err := parseTimeString(lastAttempt.String); err == nil {
			sp.LastAttemptAt = &attempt
		}
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			sp.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sp.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sp.UpdatedAt = updated
	}
	return sp, nil
}

func scanDueItem(scanner interface{ Scan(dest ...any) error }) (*DueItem, error) {
	var (
		sp           ScheduledPost
		scheduledRaw sql.NullString
		statusStr    string
		retryCount   sql.NullInt64
		lastError    sql.NullString
		lastAttempt  sql.NullString
		publishedRaw sql.NullString
		externalID   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		content      string
		postStatus   string
		projectID    int64
		ownerAccount sql.NullString
	)

	if err := scanner.Scan(
		&sp.ID,
		&sp.PostID,
		&sp.Platform,
		&scheduledRaw,
		&statusStr,
		&retryCount,
		&lastError,
		&lastAttempt,
		&publishedRaw,
		&externalID,
		&createdRaw,
		&updatedRaw,
		&content,
		&postStatus,
		&projectID,
		&ownerAccount,
	); err != nil {
		return nil, err
	}

	sp.Status = ScheduleStatus(statusStr)
	sp.RetryCount = int(retryCount.Int64)
	sp.LastError = lastError.String
	sp.ExternalPostID = externalID.String
	if scheduled, err := parseTimeString(scheduledRaw.String); err == nil {
		sp.ScheduledFor = scheduled
	}
	if lastAttempt.Valid {
		if attempt, err := parseTimeString(lastAttempt.String); err == nil {
			sp.LastAttemptAt = &attempt
		}
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			sp.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		sp.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sp.UpdatedAt = updated
	}

	return &DueItem{
		Scheduled:    sp,
		PostContent:  content,
		PostStatus:   PostStatus(postStatus),
		ProjectID:    projectID,
		OwnerAccount: ownerAccount.String,
	}, nil
}
