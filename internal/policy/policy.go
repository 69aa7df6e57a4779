package policy

import (
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

const (
	staleElapsed = 30 * time.Minute
	rapidElapsed = 2 * time.Minute
)

// Level maps the current score, behavior and ignore streak to a reminder
// intensity. Pure; escalation steps clamp at the enumeration bounds.
func Level(score model.PostureScore, behavior model.BehaviorProfile, consecutiveIgnored int, elapsed time.Duration) model.ReminderLevel {
	level := baseLevel(score.Level)

	switch {
	case consecutiveIgnored >= 6:
		level = model.LevelUrgent
	case consecutiveIgnored >= 4:
		level = level.Escalate(2)
	case consecutiveIgnored >= 2:
		level = level.Escalate(1)
	}

	// Behavior adjustments: first matching rule wins, default no change.
	switch {
	case behavior.ImprovementTrend > 0.2 && behavior.ReminderResponseRate > 0.7:
		level = level.Deescalate(1)
	case behavior.ReminderResponseRate < 0.3:
		level = level.Escalate(1)
	case behavior.SessionDuration > 60 && behavior.AverageScore < 50:
		level = level.Escalate(1)
	}

	switch {
	case elapsed > staleElapsed:
		// Stale context: whatever was ignored before no longer applies.
		level = model.LevelGentle
	case elapsed < rapidElapsed:
		level = level.Escalate(1)
	}
	return level
}

func baseLevel(quality model.QualityLevel) model.ReminderLevel {
	switch quality {
	case model.QualityPoor:
		return model.LevelModerate
	case model.QualityCritical:
		return model.LevelStrong
	default:
		return model.LevelGentle
	}
}

// Type selects the presentation channel. Quiet hours override everything;
// work mode overrides the default mapping during 9-17.
func Type(level model.ReminderLevel, cfg config.ReminderConfig, appInForeground bool, hour int) model.ReminderType {
	if cfg.QuietHours.Contains(hour) {
		if level.Priority() >= 3 {
			return model.TypeVibration
		}
		return model.TypeNotification
	}
	if cfg.WorkMode && hour >= 9 && hour <= 17 {
		switch level {
		case model.LevelStrong:
			return model.TypePopup
		case model.LevelUrgent:
			return model.TypeCombined
		default:
			return model.TypeNotification
		}
	}
	switch level {
	case model.LevelGentle:
		return model.TypeNotification
	case model.LevelModerate:
		if appInForeground {
			return model.TypePopup
		}
		return model.TypeNotification
	case model.LevelStrong:
		if level.MayBlockUI() && cfg.Allows(string(model.TypeOverlay)) {
			return model.TypeOverlay
		}
		return model.TypeCombined
	default:
		return model.TypeCombined
	}
}

// Message builds the reminder text: base sentence by quality level, then the
// first recommendation, then an encouragement clause keyed by trend/average.
func Message(score model.PostureScore, level model.ReminderLevel, behavior model.BehaviorProfile) string {
	msg := baseMessage(score.Level)
	if len(score.Recommendations) > 0 {
		msg += " " + score.Recommendations[0]
	}
	if enc := encouragement(behavior); enc != "" {
		msg += " " + enc
	}
	return msg
}

func baseMessage(quality model.QualityLevel) string {
	switch quality {
	case model.QualityExcellent:
		return "Excellent posture!"
	case model.QualityGood:
		return "Your posture looks good."
	case model.QualityFair:
		return "Your posture could use a small adjustment."
	case model.QualityPoor:
		return "Your posture needs attention."
	default:
		return "Please fix your posture now."
	}
}

func encouragement(behavior model.BehaviorProfile) string {
	switch {
	case behavior.ImprovementTrend > 0.2:
		return "You are improving, keep going!"
	case behavior.AverageScore > 80:
		return "You have been doing great this session."
	case behavior.ImprovementTrend < -0.2:
		return "Let's get back on track."
	default:
		return ""
	}
}
