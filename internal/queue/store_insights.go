package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const insightColumns = "id, project_id, status, category, quote, summary, score, created_at, updated_at"

// ReplaceProjectInsights clears prior insights for a project and stores a new
// extraction result in one transaction.
func (s *Store) ReplaceProjectInsights(ctx context.Context, projectID int64, insights []*Insight) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace insights tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear insights: %w", err)
	}

	timestamp := formatTime(time.Now().UTC())
	for _, insight := range insights {
		status := insight.Status
		if status == "" {
			status = InsightStatusPending
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO insights (project_id, status, category, quote, summary, score, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID,
			status,
			nullableString(insight.Category),
			nullableString(insight.Quote),
			nullableString(insight.Summary),
			insight.Score,
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert insight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace insights: %w", err)
	}
	return nil
}

// InsightsForProject returns insights ordered by descending score.
func (s *Store) InsightsForProject(ctx context.Context, projectID int64, statuses ...InsightStatus) ([]*Insight, error) {
	baseQuery := `SELECT ` + insightColumns + ` FROM insights WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		baseQuery += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	rows, err := s.db.QueryContext(ctx, baseQuery+` ORDER BY score DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var insights []*Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}

// SetInsightStatus updates one insight's review state.
func (s *Store) SetInsightStatus(ctx context.Context, id int64, status InsightStatus) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE insights SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set insight status: %w", err)
	}
	return nil
}

// SetProjectInsightStatuses moves every insight of a project from one review
// state to another. Used by the approve-insights stage side effect.
func (s *Store) SetProjectInsightStatuses(ctx context.Context, projectID int64, from, to InsightStatus) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE insights SET status = ?, updated_at = ? WHERE project_id = ? AND status = ?`,
		to,
		formatTime(time.Now().UTC()),
		projectID,
		from,
	)
	if err != nil {
		return 0, fmt.Errorf("update project insights: %w", err)
	}
	return res.RowsAffected()
}

func scanInsight(scanner interface{ Scan(dest ...any) error }) (*Insight, error) {
	var (
		id         int64
		projectID  int64
		statusStr  string
		category   sql.NullString
		quote      sql.NullString
		summary    sql.NullString
		score      sql.NullFloat64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&statusStr,
		&category,
		&quote,
		&summary,
		&score,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	insight := &Insight{
		ID:        id,
		ProjectID: projectID,
		Status:    InsightStatus(statusStr),
		Category:  category.String,
		Quote:     quote.String,
		Summary:   summary.String,
		Score:     score.Float64,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		insight.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		insight.UpdatedAt = updated
	}
	return insight, nil
}
