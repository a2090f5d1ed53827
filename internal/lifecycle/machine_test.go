package lifecycle_test

import (
	"errors"
	"testing"

	"prismatic/internal/lifecycle"
)

// legalEdges mirrors the documented transition table so the test fails loudly
// if either side changes alone.
var legalEdges = map[lifecycle.Stage]map[lifecycle.Trigger]lifecycle.Stage{
	lifecycle.StageRawContent: {
		lifecycle.TriggerStartProcessing: lifecycle.StageProcessingContent,
		lifecycle.TriggerArchive:         lifecycle.StageArchived,
	},
	lifecycle.StageProcessingContent: {
		lifecycle.TriggerProcessingComplete: lifecycle.StageInsightsReady,
		lifecycle.TriggerProcessingFailed:   lifecycle.StageRawContent,
		lifecycle.TriggerArchive:            lifecycle.StageArchived,
	},
	lifecycle.StageInsightsReady: {
		lifecycle.TriggerApproveInsights: lifecycle.StageInsightsApproved,
		lifecycle.TriggerRejectInsights:  lifecycle.StageProcessingContent,
		lifecycle.TriggerArchive:         lifecycle.StageArchived,
	},
	lifecycle.StageInsightsApproved: {
		lifecycle.TriggerGeneratePosts: lifecycle.StagePostsGenerated,
		lifecycle.TriggerArchive:       lifecycle.StageArchived,
	},
	lifecycle.StagePostsGenerated: {
		lifecycle.TriggerApprovePosts: lifecycle.StagePostsApproved,
		lifecycle.TriggerRejectPosts:  lifecycle.StageInsightsApproved,
		lifecycle.TriggerArchive:      lifecycle.StageArchived,
	},
	lifecycle.StagePostsApproved: {
		lifecycle.TriggerSchedulePosts: lifecycle.StageScheduled,
		lifecycle.TriggerPublishNow:    lifecycle.StagePublishing,
		lifecycle.TriggerArchive:       lifecycle.StageArchived,
	},
	lifecycle.StageScheduled: {
		lifecycle.TriggerStartPublishing: lifecycle.StagePublishing,
		lifecycle.TriggerCancelSchedule:  lifecycle.StagePostsApproved,
		lifecycle.TriggerArchive:         lifecycle.StageArchived,
	},
	lifecycle.StagePublishing: {
		lifecycle.TriggerPublishingComplete: lifecycle.StagePublished,
		lifecycle.TriggerPublishingFailed:   lifecycle.StageScheduled,
		lifecycle.TriggerArchive:            lifecycle.StageArchived,
	},
	lifecycle.StagePublished: {
		lifecycle.TriggerArchive: lifecycle.StageArchived,
	},
	lifecycle.StageArchived: {
		lifecycle.TriggerRestore: lifecycle.StageRawContent,
	},
}

func TestEveryCellOfTransitionTable(t *testing.T) {
	for _, stage := range lifecycle.AllStages() {
		for _, trigger := range lifecycle.AllTriggers() {
			wantDest, legal := legalEdges[stage][trigger]
			dest, _, err := lifecycle.Fire(stage, trigger)

			if legal {
				if err != nil {
					t.Errorf("Fire(%s, %s) unexpected error: %v", stage, trigger, err)
					continue
				}
				if dest != wantDest {
					t.Errorf("Fire(%s, %s) = %s, want %s", stage, trigger, dest, wantDest)
				}
				if !lifecycle.CanFire(stage, trigger) {
					t.Errorf("CanFire(%s, %s) = false for legal edge", stage, trigger)
				}
				continue
			}

			if err == nil {
				t.Errorf("Fire(%s, %s) should fail, got %s", stage, trigger, dest)
				continue
			}
			var invalid *lifecycle.InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Errorf("Fire(%s, %s) error type = %T, want InvalidTransitionError", stage, trigger, err)
				continue
			}
			if invalid.Stage != stage || invalid.Trigger != trigger {
				t.Errorf("InvalidTransitionError identifies (%s, %s), want (%s, %s)",
					invalid.Stage, invalid.Trigger, stage, trigger)
			}
			if lifecycle.CanFire(stage, trigger) {
				t.Errorf("CanFire(%s, %s) = true for illegal edge", stage, trigger)
			}
		}
	}
}

func TestPermittedTriggersMatchTable(t *testing.T) {
	for _, stage := range lifecycle.AllStages() {
		permitted := lifecycle.PermittedTriggers(stage)
		if len(permitted) != len(legalEdges[stage]) {
			t.Fatalf("%s: permitted %v, want %d triggers", stage, permitted, len(legalEdges[stage]))
		}
		for _, trigger := range permitted {
			if _, ok := legalEdges[stage][trigger]; !ok {
				t.Fatalf("%s: trigger %s permitted but not in table", stage, trigger)
			}
		}
	}
}

func TestProgressIsPureFunctionOfStage(t *testing.T) {
	want := map[lifecycle.Stage]int{
		lifecycle.StageRawContent:        0,
		lifecycle.StageProcessingContent: 10,
		lifecycle.StageInsightsReady:     25,
		lifecycle.StageInsightsApproved:  40,
		lifecycle.StagePostsGenerated:    55,
		lifecycle.StagePostsApproved:     70,
		lifecycle.StageScheduled:         85,
		lifecycle.StagePublishing:        95,
		lifecycle.StagePublished:         100,
		lifecycle.StageArchived:          100,
	}
	for stage, progress := range want {
		if got := lifecycle.ProgressFor(stage); got != progress {
			t.Errorf("ProgressFor(%s) = %d, want %d", stage, got, progress)
		}
	}

	// Two different paths into Scheduled yield the same progress.
	viaSchedule, p1, err := lifecycle.Fire(lifecycle.StagePostsApproved, lifecycle.TriggerSchedulePosts)
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	viaFailure, p2, err := lifecycle.Fire(lifecycle.StagePublishing, lifecycle.TriggerPublishingFailed)
	if err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if viaSchedule != viaFailure || p1 != p2 {
		t.Fatalf("paths into Scheduled disagree: (%s,%d) vs (%s,%d)", viaSchedule, p1, viaFailure, p2)
	}
}

func TestPublishRoundTrip(t *testing.T) {
	stage := lifecycle.StagePostsApproved

	stage, progress, err := lifecycle.Fire(stage, lifecycle.TriggerSchedulePosts)
	if err != nil || stage != lifecycle.StageScheduled || progress != 85 {
		t.Fatalf("SchedulePosts: got (%s, %d, %v)", stage, progress, err)
	}
	stage, progress, err = lifecycle.Fire(stage, lifecycle.TriggerStartPublishing)
	if err != nil || stage != lifecycle.StagePublishing || progress != 95 {
		t.Fatalf("StartPublishing: got (%s, %d, %v)", stage, progress, err)
	}
	stage, progress, err = lifecycle.Fire(stage, lifecycle.TriggerPublishingFailed)
	if err != nil || stage != lifecycle.StageScheduled || progress != 85 {
		t.Fatalf("PublishingFailed: got (%s, %d, %v)", stage, progress, err)
	}
}

func TestParseStageAndTrigger(t *testing.T) {
	if stage, ok := lifecycle.ParseStage("  Posts_Approved "); !ok || stage != lifecycle.StagePostsApproved {
		t.Fatalf("ParseStage failed: %v %v", stage, ok)
	}
	if _, ok := lifecycle.ParseStage("limbo"); ok {
		t.Fatal("ParseStage accepted unknown stage")
	}
	if trigger, ok := lifecycle.ParseTrigger("ARCHIVE"); !ok || trigger != lifecycle.TriggerArchive {
		t.Fatalf("ParseTrigger failed: %v %v", trigger, ok)
	}
	if _, ok := lifecycle.ParseTrigger(""); ok {
		t.Fatal("ParseTrigger accepted empty string")
	}
}
