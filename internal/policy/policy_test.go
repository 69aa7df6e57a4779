package policy

import (
	"testing"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

func scoreAt(level model.QualityLevel) model.PostureScore {
	overall := map[model.QualityLevel]float64{
		model.QualityExcellent: 95,
		model.QualityGood:      80,
		model.QualityFair:      65,
		model.QualityPoor:      45,
		model.QualityCritical:  20,
	}[level]
	return model.PostureScore{Overall: overall, Level: level, Recommendations: []string{"Sit up straight."}}
}

func TestBaseLevels(t *testing.T) {
	elapsed := 10 * time.Minute
	cases := []struct {
		quality model.QualityLevel
		want    model.ReminderLevel
	}{
		{model.QualityExcellent, model.LevelGentle},
		{model.QualityGood, model.LevelGentle},
		{model.QualityFair, model.LevelGentle},
		{model.QualityPoor, model.LevelModerate},
		{model.QualityCritical, model.LevelStrong},
	}
	for _, tc := range cases {
		got := Level(scoreAt(tc.quality), model.BehaviorProfile{ReminderResponseRate: 0.5}, 0, elapsed)
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.quality, got, tc.want)
		}
	}
}

func TestEscalationMonotonicInIgnored(t *testing.T) {
	elapsed := 10 * time.Minute
	behavior := model.BehaviorProfile{ReminderResponseRate: 0.5}
	prev := model.LevelGentle
	for ignored := 0; ignored <= 8; ignored++ {
		got := Level(scoreAt(model.QualityFair), behavior, ignored, elapsed)
		if got < prev {
			t.Fatalf("level decreased at ignored=%d: %s < %s", ignored, got, prev)
		}
		prev = got
	}
	if prev != model.LevelUrgent {
		t.Fatalf("expected urgent after sustained ignoring, got %s", prev)
	}
}

func TestSixIgnoredForcesUrgent(t *testing.T) {
	got := Level(scoreAt(model.QualityExcellent), model.BehaviorProfile{ReminderResponseRate: 0.5}, 6, 10*time.Minute)
	if got != model.LevelUrgent {
		t.Fatalf("got %s", got)
	}
}

func TestBehaviorAdjustments(t *testing.T) {
	elapsed := 10 * time.Minute
	responsive := model.BehaviorProfile{ImprovementTrend: 0.5, ReminderResponseRate: 0.9}
	if got := Level(scoreAt(model.QualityPoor), responsive, 0, elapsed); got != model.LevelGentle {
		t.Fatalf("responsive user: %s", got)
	}
	unresponsive := model.BehaviorProfile{ReminderResponseRate: 0.1}
	if got := Level(scoreAt(model.QualityPoor), unresponsive, 0, elapsed); got != model.LevelStrong {
		t.Fatalf("unresponsive user: %s", got)
	}
	longPoor := model.BehaviorProfile{SessionDuration: 90, AverageScore: 40, ReminderResponseRate: 0.5}
	if got := Level(scoreAt(model.QualityPoor), longPoor, 0, elapsed); got != model.LevelStrong {
		t.Fatalf("long poor session: %s", got)
	}
	// First matching rule wins: responsive beats long-session-poor.
	both := model.BehaviorProfile{ImprovementTrend: 0.5, ReminderResponseRate: 0.9, SessionDuration: 90, AverageScore: 40}
	if got := Level(scoreAt(model.QualityPoor), both, 0, elapsed); got != model.LevelGentle {
		t.Fatalf("first-match: %s", got)
	}
}

func TestStaleElapsedResetsToGentle(t *testing.T) {
	got := Level(scoreAt(model.QualityCritical), model.BehaviorProfile{ReminderResponseRate: 0.1}, 5, 45*time.Minute)
	if got != model.LevelGentle {
		t.Fatalf("got %s", got)
	}
}

func TestRapidRepeatEscalates(t *testing.T) {
	calm := Level(scoreAt(model.QualityPoor), model.BehaviorProfile{ReminderResponseRate: 0.5}, 0, 10*time.Minute)
	rapid := Level(scoreAt(model.QualityPoor), model.BehaviorProfile{ReminderResponseRate: 0.5}, 0, time.Minute)
	if rapid != calm.Escalate(1) {
		t.Fatalf("rapid %s, calm %s", rapid, calm)
	}
}

func TestQuietHoursOverrideWins(t *testing.T) {
	cfg := config.ReminderConfig{
		WorkMode:   true,
		QuietHours: config.QuietHoursConfig{Enabled: true, StartHour: 22, EndHour: 6},
	}
	for _, hour := range []int{22, 23, 0, 3, 5} {
		for _, level := range []model.ReminderLevel{model.LevelGentle, model.LevelModerate, model.LevelStrong, model.LevelUrgent} {
			got := Type(level, cfg, true, hour)
			want := model.TypeNotification
			if level.Priority() >= 3 {
				want = model.TypeVibration
			}
			if got != want {
				t.Fatalf("hour %d level %s: got %s, want %s", hour, level, got, want)
			}
		}
	}
	// Outside the wrapping range quiet hours do not apply.
	if got := Type(model.LevelUrgent, cfg, true, 12); got == model.TypeVibration {
		t.Fatalf("quiet hours applied outside range")
	}
}

func TestWorkModeMapping(t *testing.T) {
	cfg := config.ReminderConfig{WorkMode: true}
	if got := Type(model.LevelGentle, cfg, true, 10); got != model.TypeNotification {
		t.Fatalf("gentle: %s", got)
	}
	if got := Type(model.LevelModerate, cfg, true, 10); got != model.TypeNotification {
		t.Fatalf("moderate: %s", got)
	}
	if got := Type(model.LevelStrong, cfg, true, 10); got != model.TypePopup {
		t.Fatalf("strong: %s", got)
	}
	if got := Type(model.LevelUrgent, cfg, true, 10); got != model.TypeCombined {
		t.Fatalf("urgent: %s", got)
	}
	// Work mode only applies during working hours.
	if got := Type(model.LevelStrong, cfg, true, 20); got == model.TypePopup {
		t.Fatalf("work mode applied outside 9-17")
	}
}

func TestDefaultMapping(t *testing.T) {
	cfg := config.ReminderConfig{}
	if got := Type(model.LevelModerate, cfg, true, 12); got != model.TypePopup {
		t.Fatalf("moderate foreground: %s", got)
	}
	if got := Type(model.LevelModerate, cfg, false, 12); got != model.TypeNotification {
		t.Fatalf("moderate background: %s", got)
	}
	if got := Type(model.LevelStrong, cfg, true, 12); got != model.TypeOverlay {
		t.Fatalf("strong with overlay allowed: %s", got)
	}
	restricted := config.ReminderConfig{AllowedTypes: []string{"notification", "popup", "combined"}}
	if got := Type(model.LevelStrong, restricted, true, 12); got != model.TypeCombined {
		t.Fatalf("strong with overlay forbidden: %s", got)
	}
	if got := Type(model.LevelUrgent, cfg, false, 12); got != model.TypeCombined {
		t.Fatalf("urgent: %s", got)
	}
}

func TestMessageConcatenationOrder(t *testing.T) {
	sc := scoreAt(model.QualityPoor)
	behavior := model.BehaviorProfile{ImprovementTrend: 0.5}
	msg := Message(sc, model.LevelModerate, behavior)
	want := "Your posture needs attention. Sit up straight. You are improving, keep going!"
	if msg != want {
		t.Fatalf("got %q, want %q", msg, want)
	}
}

func TestLevelStepClamping(t *testing.T) {
	if model.LevelUrgent.Escalate(3) != model.LevelUrgent {
		t.Fatalf("escalate past urgent")
	}
	if model.LevelGentle.Deescalate(2) != model.LevelGentle {
		t.Fatalf("de-escalate past gentle")
	}
}
