package queue

import (
	"strings"
	"time"

	"prismatic/internal/lifecycle"
)

// PostStatus represents the lifecycle of a generated post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusReview    PostStatus = "review"
	PostStatusApproved  PostStatus = "approved"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
	PostStatusArchived  PostStatus = "archived"
)

// ScheduleStatus represents the lifecycle of one scheduled delivery.
type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusPublishing ScheduleStatus = "publishing"
	ScheduleStatusPublished  ScheduleStatus = "published"
	ScheduleStatusFailed     ScheduleStatus = "failed"
	ScheduleStatusCancelled  ScheduleStatus = "cancelled"
)

// InsightStatus represents the review state of an extracted insight.
type InsightStatus string

const (
	InsightStatusPending  InsightStatus = "pending"
	InsightStatusApproved InsightStatus = "approved"
	InsightStatusRejected InsightStatus = "rejected"
)

var allScheduleStatuses = []ScheduleStatus{
	ScheduleStatusPending,
	ScheduleStatusPublishing,
	ScheduleStatusPublished,
	ScheduleStatusFailed,
	ScheduleStatusCancelled,
}

var scheduleStatusSet = func() map[ScheduleStatus]struct{} {
	set := make(map[ScheduleStatus]struct{}, len(allScheduleStatuses))
	for _, status := range allScheduleStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseScheduleStatus converts a string into a known ScheduleStatus.
func ParseScheduleStatus(value string) (ScheduleStatus, bool) {
	normalized := ScheduleStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := scheduleStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the schedule status accepts no further delivery
// attempts. Failed is recoverable and therefore not terminal.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusPublished || s == ScheduleStatusCancelled
}

// Project is the aggregate root for one piece of source content moving through
// the pipeline. Stage mutations go through CompareAndSwapProjectStage only.
type Project struct {
	ID                   int64
	Title                string
	Transcript           string
	Stage                lifecycle.Stage
	Progress             int
	AutoApproveInsights  bool
	AutoApprovePosts     bool
	TargetPlatforms      []string
	PreferredPostingTime string
	OwnerAccount         string
	ErrorMessage         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	LastActivityAt       time.Time
}

// Insight is one reviewable takeaway extracted from a project transcript.
type Insight struct {
	ID        int64
	ProjectID int64
	Status    InsightStatus
	Category  string
	Quote     string
	Summary   string
	Score     float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Post is platform-ready content generated from an approved insight.
type Post struct {
	ID             int64
	ProjectID      int64
	InsightID      int64
	Platform       string
	Status         PostStatus
	Content        string
	ExternalPostID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduledPost is one platform delivery attempt context for a post.
type ScheduledPost struct {
	ID             int64
	PostID         int64
	Platform       string
	ScheduledFor   time.Time
	Status         ScheduleStatus
	RetryCount     int
	LastError      string
	LastAttemptAt  *time.Time
	PublishedAt    *time.Time
	ExternalPostID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DueItem joins a due scheduled post with the post and project fields the
// publish worker needs, so delivery does not issue per-item lookups.
type DueItem struct {
	Scheduled    ScheduledPost
	PostContent  string
	PostStatus   PostStatus
	ProjectID    int64
	OwnerAccount string
}

// HealthSummary aggregates queue counts for diagnostic output.
type HealthSummary struct {
	Projects         int
	ActiveProjects   int
	PendingDue       int
	FailedDeliveries int
	PublishedPosts   int
}
