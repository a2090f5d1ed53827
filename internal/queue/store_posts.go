package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postColumns = "id, project_id, insight_id, platform, status, content, external_post_id, created_at, updated_at"

// NewPost inserts a generated post in draft status.
func (s *Store) NewPost(ctx context.Context, post *Post) (*Post, error) {
	if post == nil {
		return nil, errors.New("post is nil")
	}
	if post.ProjectID == 0 {
		return nil, errors.New("post requires a project")
	}
	if post.Content == "" {
		return nil, errors.New("post content is required")
	}

	status := post.Status
	if status == "" {
		status = PostStatusDraft
	}
	timestamp := formatTime(time.Now().UTC())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO posts (project_id, insight_id, platform, status, content, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ProjectID,
		nullableInt64(post.InsightID),
		post.Platform,
		status,
		post.Content,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPost(ctx, id)
}

// GetPost fetches a post by identifier. Returns nil when absent.
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// PostsForProject returns all posts for a project ordered by creation time.
func (s *Store) PostsForProject(ctx context.Context, projectID int64, statuses ...PostStatus) ([]*Post, error) {
	baseQuery := `SELECT ` + postColumns + ` FROM posts WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		baseQuery += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := s.db.QueryContext(ctx, baseQuery+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// SetPostStatus updates one post's status.
func (s *Store) SetPostStatus(ctx context.Context, id int64, status PostStatus) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set post status: %w", err)
	}
	return nil
}

// SetProjectPostStatuses moves every post of a project from one status to
// another. Used by stage side effects (approve, schedule, archive).
func (s *Store) SetProjectPostStatuses(ctx context.Context, projectID int64, from, to PostStatus) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE posts SET status = ?, updated_at = ? WHERE project_id = ? AND status = ?`,
		to,
		formatTime(time.Now().UTC()),
		projectID,
		from,
	)
	if err != nil {
		return 0, fmt.Errorf("update project posts: %w", err)
	}
	return res.RowsAffected()
}

// ReplaceProjectPosts removes prior drafts and inserts freshly generated
// posts. Fired when a project re-enters post generation after rejection.
func (s *Store) ReplaceProjectPosts(ctx context.Context, projectID int64, posts []*Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace posts tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE project_id = ? AND status IN (?, ?)`,
		projectID, PostStatusDraft, PostStatusReview); err != nil {
		return fmt.Errorf("clear draft posts: %w", err)
	}

	timestamp := formatTime(time.Now().UTC())
	for _, post := range posts {
		status := post.Status
		if status == "" {
			status = PostStatusDraft
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO posts (project_id, insight_id, platform, status, content, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID,
			nullableInt64(post.InsightID),
			post.Platform,
			status,
			post.Content,
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert generated post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace posts: %w", err)
	}
	return nil
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (*Post, error) {
	var (
		id         int64
		projectID  int64
		insightID  sql.NullInt64
		platform   string
		statusStr  string
		content    string
		externalID sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&insightID,
		&platform,
		&statusStr,
		&content,
		&externalID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	post := &Post{
		ID:             id,
		ProjectID:      projectID,
		InsightID:      insightID.Int64,
		Platform:       platform,
		Status:         PostStatus(statusStr),
		Content:        content,
		ExternalPostID: externalID.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		post.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		post.UpdatedAt = updated
	}
	return post, nil
}
