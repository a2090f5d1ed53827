package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prismatic/internal/lifecycle"
)

const projectColumns = "id, title, transcript, current_stage, progress, auto_approve_insights, auto_approve_posts, target_platforms, preferred_posting_time, owner_account, error_message, created_at, updated_at, last_activity_at"

// NewProject inserts a project at the start of the pipeline.
func (s *Store) NewProject(ctx context.Context, project *Project) (*Project, error) {
	if project == nil {
		return nil, errors.New("project is nil")
	}
	if project.Title == "" {
		return nil, errors.New("project title is required")
	}

	now := time.Now().UTC()
	timestamp := formatTime(now)
	stage := lifecycle.StageRawContent

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO projects (
            title, transcript, current_stage, progress,
            auto_approve_insights, auto_approve_posts, target_platforms,
            preferred_posting_time, owner_account, created_at, updated_at, last_activity_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.Title,
		nullableString(project.Transcript),
		stage,
		lifecycle.ProgressFor(stage),
		boolToInt(project.AutoApproveInsights),
		boolToInt(project.AutoApprovePosts),
		nullableString(joinPlatforms(project.TargetPlatforms)),
		nullableString(project.PreferredPostingTime),
		nullableString(project.OwnerAccount),
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetProject(ctx, id)
}

// GetProject fetches a project by identifier. Returns nil when absent.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns projects filtered by stage set (or all projects when no
// stage is provided), ordered by creation time.
func (s *Store) ListProjects(ctx context.Context, stages ...lifecycle.Stage) ([]*Project, error) {
	baseQuery := `SELECT ` + projectColumns + ` FROM projects`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE current_stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// NextProjectForStages returns the oldest project in any of the provided stages.
func (s *Store) NextProjectForStages(ctx context.Context, stages ...lifecycle.Stage) (*Project, error) {
	if len(stages) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(stages))
	args := make([]any, len(stages))
	for i, stage := range stages {
		args[i] = stage
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE current_stage IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProjectSettings persists workflow configuration and metadata fields.
// Stage and progress are deliberately excluded; those move only through
// CompareAndSwapProjectStage.
func (s *Store) UpdateProjectSettings(ctx context.Context, project *Project) error {
	if project == nil {
		return errors.New("project is nil")
	}
	project.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE projects
         SET title = ?, transcript = ?, auto_approve_insights = ?, auto_approve_posts = ?,
             target_platforms = ?, preferred_posting_time = ?, owner_account = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		project.Title,
		nullableString(project.Transcript),
		boolToInt(project.AutoApproveInsights),
		boolToInt(project.AutoApprovePosts),
		nullableString(joinPlatforms(project.TargetPlatforms)),
		nullableString(project.PreferredPostingTime),
		nullableString(project.OwnerAccount),
		nullableString(project.ErrorMessage),
		formatTime(project.UpdatedAt),
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// CompareAndSwapProjectStage atomically moves a project from one stage to
// another, refreshing progress and activity timestamps. The swap succeeds only
// when the stored stage still equals from; a false return means another writer
// moved the project first.
func (s *Store) CompareAndSwapProjectStage(ctx context.Context, id int64, from, to lifecycle.Stage, progress int) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects
         SET current_stage = ?, progress = ?, error_message = NULL,
             updated_at = ?, last_activity_at = ?
         WHERE id = ? AND current_stage = ?`,
		to,
		progress,
		now,
		now,
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("swap project stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetProjectError records a failure message without touching the stage.
func (s *Store) SetProjectError(ctx context.Context, id int64, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE projects SET error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(message),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set project error: %w", err)
	}
	return nil
}

// RemoveProject deletes a project and its dependent rows.
func (s *Store) RemoveProject(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ProjectStats returns a count of projects grouped by stage.
func (s *Store) ProjectStats(ctx context.Context) (map[lifecycle.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT current_stage, COUNT(1) FROM projects GROUP BY current_stage`)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[lifecycle.Stage]int)
	for rows.Next() {
		var stage lifecycle.Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[stage] = count
	}
	return stats, rows.Err()
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id           int64
		title        string
		transcript   sql.NullString
		stageStr     string
		progress     sql.NullInt64
		autoInsights sql.NullInt64
		autoPosts    sql.NullInt64
		platforms    sql.NullString
		postingTime  sql.NullString
		ownerAccount sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		lastActivity sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&transcript,
		&stageStr,
		&progress,
		&autoInsights,
		&autoPosts,
		&platforms,
		&postingTime,
		&ownerAccount,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&lastActivity,
	); err != nil {
		return nil, err
	}

	project := &Project{
		ID:                   id,
		Title:                title,
		Transcript:           transcript.String,
		Stage:                lifecycle.Stage(stageStr),
		Progress:             int(progress.Int64),
		AutoApproveInsights:  autoInsights.Int64 != 0,
		AutoApprovePosts:     autoPosts.Int64 != 0,
		TargetPlatforms:      splitPlatforms(platforms.String),
		PreferredPostingTime: postingTime.String,
		OwnerAccount:         ownerAccount.String,
		ErrorMessage:         errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		project.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		project.UpdatedAt = updated
	}
	if activity, err := parseTimeString(lastActivity.String); err == nil {
		project.LastActivityAt = activity
	}
	return project, nil
}
