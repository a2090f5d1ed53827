package lifecycle

import "fmt"

// InvalidTransitionError reports an attempt to fire a trigger that is not
// legal from the current stage. It is never retried automatically.
type InvalidTransitionError struct {
	Stage   Stage
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: trigger %q is not permitted from stage %q", e.Trigger, e.Stage)
}

type transition struct {
	trigger Trigger
	dest    Stage
}

// transitions is the canonical table. It is the single source of truth for
// which triggers are legal from each stage; there is deliberately no other
// encoding of these rules anywhere in the repository.
//
// Archived supports restoration back to the start of the pipeline, and
// PostsApproved has no direct return to post generation; regeneration goes
// through the PostsGenerated rejection gate.
var transitions = map[Stage][]transition{
	StageRawContent: {
		{TriggerStartProcessing, StageProcessingContent},
		{TriggerArchive, StageArchived},
	},
	StageProcessingContent: {
		{TriggerProcessingComplete, StageInsightsReady},
		{TriggerProcessingFailed, StageRawContent},
		{TriggerArchive, StageArchived},
	},
	StageInsightsReady: {
		{TriggerApproveInsights, StageInsightsApproved},
		{TriggerRejectInsights, StageProcessingContent},
		{TriggerArchive, StageArchived},
	},
	StageInsightsApproved: {
		{TriggerGeneratePosts, StagePostsGenerated},
		{TriggerArchive, StageArchived},
	},
	StagePostsGenerated: {
		{TriggerApprovePosts, StagePostsApproved},
		{TriggerRejectPosts, StageInsightsApproved},
		{TriggerArchive, StageArchived},
	},
	StagePostsApproved: {
		{TriggerSchedulePosts, StageScheduled},
		{TriggerPublishNow, StagePublishing},
		{TriggerArchive, StageArchived},
	},
	StageScheduled: {
		{TriggerStartPublishing, StagePublishing},
		{TriggerCancelSchedule, StagePostsApproved},
		{TriggerArchive, StageArchived},
	},
	StagePublishing: {
		{TriggerPublishingComplete, StagePublished},
		{TriggerPublishingFailed, StageScheduled},
		{TriggerArchive, StageArchived},
	},
	StagePublished: {
		{TriggerArchive, StageArchived},
	},
	StageArchived: {
		{TriggerRestore, StageRawContent},
	},
}

// Next returns the destination stage for firing trigger from stage. The
// boolean reports whether the transition is legal.
func Next(stage Stage, trigger Trigger) (Stage, bool) {
	for _, t := range transitions[stage] {
		if t.trigger == trigger {
			return t.dest, true
		}
	}
	return "", false
}

// CanFire reports whether trigger is legal from stage. Pure query, no side
// effects.
func CanFire(stage Stage, trigger Trigger) bool {
	_, ok := Next(stage, trigger)
	return ok
}

// PermittedTriggers returns the triggers legal from stage in table order.
func PermittedTriggers(stage Stage) []Trigger {
	rows := transitions[stage]
	out := make([]Trigger, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.trigger)
	}
	return out
}

// Fire validates the transition and returns the destination stage along with
// its progress value. An illegal trigger returns *InvalidTransitionError and
// the inputs are untouched. Persistence of the result is the caller's job;
// see queue.Store.CompareAndSwapProjectStage for the atomic update.
func Fire(stage Stage, trigger Trigger) (Stage, int, error) {
	dest, ok := Next(stage, trigger)
	if !ok {
		return "", 0, &InvalidTransitionError{Stage: stage, Trigger: trigger}
	}
	return dest, ProgressFor(dest), nil
}
