package lifecycle

import "strings"

// Stage represents a project's position in the content pipeline.
type Stage string

const (
	StageRawContent        Stage = "raw_content"
	StageProcessingContent Stage = "processing_content"
	StageInsightsReady     Stage = "insights_ready"
	StageInsightsApproved  Stage = "insights_approved"
	StagePostsGenerated    Stage = "posts_generated"
	StagePostsApproved     Stage = "posts_approved"
	StageScheduled         Stage = "scheduled"
	StagePublishing        Stage = "publishing"
	StagePublished         Stage = "published"
	StageArchived          Stage = "archived"
)

// Trigger is a named event requesting a stage transition.
type Trigger string

const (
	TriggerStartProcessing    Trigger = "start_processing"
	TriggerProcessingComplete Trigger = "processing_complete"
	TriggerProcessingFailed   Trigger = "processing_failed"
	TriggerApproveInsights    Trigger = "approve_insights"
	TriggerRejectInsights     Trigger = "reject_insights"
	TriggerGeneratePosts      Trigger = "generate_posts"
	TriggerApprovePosts       Trigger = "approve_posts"
	TriggerRejectPosts        Trigger = "reject_posts"
	TriggerSchedulePosts      Trigger = "schedule_posts"
	TriggerPublishNow         Trigger = "publish_now"
	TriggerStartPublishing    Trigger = "start_publishing"
	TriggerCancelSchedule     Trigger = "cancel_schedule"
	TriggerPublishingComplete Trigger = "publishing_complete"
	TriggerPublishingFailed   Trigger = "publishing_failed"
	TriggerArchive            Trigger = "archive"
	TriggerRestore            Trigger = "restore"
)

var allStages = []Stage{
	StageRawContent,
	StageProcessingContent,
	StageInsightsReady,
	StageInsightsApproved,
	StagePostsGenerated,
	StagePostsApproved,
	StageScheduled,
	StagePublishing,
	StagePublished,
	StageArchived,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(allStages))
	for _, stage := range allStages {
		set[stage] = struct{}{}
	}
	return set
}()

var allTriggers = []Trigger{
	TriggerStartProcessing,
	TriggerProcessingComplete,
	TriggerProcessingFailed,
	TriggerApproveInsights,
	TriggerRejectInsights,
	TriggerGeneratePosts,
	TriggerApprovePosts,
	TriggerRejectPosts,
	TriggerSchedulePosts,
	TriggerPublishNow,
	TriggerStartPublishing,
	TriggerCancelSchedule,
	TriggerPublishingComplete,
	TriggerPublishingFailed,
	TriggerArchive,
	TriggerRestore,
}

var triggerSet = func() map[Trigger]struct{} {
	set := make(map[Trigger]struct{}, len(allTriggers))
	for _, trigger := range allTriggers {
		set[trigger] = struct{}{}
	}
	return set
}()

// progressByStage maps each stage to the overall progress percentage shown in
// status output. Progress is a pure function of stage and plays no part in
// transition decisions.
var progressByStage = map[Stage]int{
	StageRawContent:        0,
	StageProcessingContent: 10,
	StageInsightsReady:     25,
	StageInsightsApproved:  40,
	StagePostsGenerated:    55,
	StagePostsApproved:     70,
	StageScheduled:         85,
	StagePublishing:        95,
	StagePublished:         100,
	StageArchived:          100,
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// AllTriggers returns the ordered list of known triggers.
func AllTriggers() []Trigger {
	cp := make([]Trigger, len(allTriggers))
	copy(cp, allTriggers)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// ParseTrigger converts a string into a known Trigger.
func ParseTrigger(value string) (Trigger, bool) {
	normalized := Trigger(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := triggerSet[normalized]
	return normalized, ok
}

// ProgressFor returns the progress percentage for a stage. Unknown stages
// report zero.
func ProgressFor(stage Stage) int {
	return progressByStage[stage]
}

// IsTerminal reports whether a stage has no outbound transitions besides the
// universal archive edge. Published is the pipeline's terminal success state.
func IsTerminal(stage Stage) bool {
	return stage == StagePublished
}
