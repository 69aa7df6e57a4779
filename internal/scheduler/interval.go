package scheduler

import (
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

// qualityFactor scales the maximum interval down as quality degrades.
var qualityFactor = map[model.QualityLevel]float64{
	model.QualityExcellent: 1.0,
	model.QualityGood:      0.8,
	model.QualityFair:      0.6,
	model.QualityPoor:      0.4,
}

// Interval computes the adaptive next-reminder interval. Critical quality is
// pinned to the minimum; everything else interpolates from the maximum and is
// clamped back into [min, max]. When min > max the low clamp runs last, so
// the minimum wins.
func Interval(quality model.QualityLevel, behavior model.BehaviorProfile, cfg config.ReminderConfig, hour int) time.Duration {
	if quality == model.QualityCritical {
		return cfg.MinInterval
	}
	factor, ok := qualityFactor[quality]
	if !ok {
		factor = 0.4
	}
	interval := time.Duration(float64(cfg.MaxInterval) * factor)
	if cfg.AdaptToBehavior {
		interval = time.Duration(float64(interval) * behaviorMultiplier(behavior))
	}
	interval = time.Duration(float64(interval) * sessionMultiplier(behavior.SessionDuration))
	interval = time.Duration(float64(interval) * timeOfDayMultiplier(hour))

	if interval > cfg.MaxInterval {
		interval = cfg.MaxInterval
	}
	if interval < cfg.MinInterval {
		interval = cfg.MinInterval
	}
	return interval
}

// First matching rule wins; the guards overlap on purpose.
func behaviorMultiplier(behavior model.BehaviorProfile) float64 {
	switch {
	case behavior.ImprovementTrend > 0.2:
		return 1.3
	case behavior.ImprovementTrend < -0.2:
		return 0.7
	case behavior.ReminderResponseRate > 0.8:
		return 1.2
	case behavior.ReminderResponseRate < 0.3:
		return 0.8
	default:
		return 1.0
	}
}

func sessionMultiplier(duration int) float64 {
	switch {
	case duration > 120:
		return 0.8
	case duration > 60:
		return 0.9
	default:
		return 1.0
	}
}

func timeOfDayMultiplier(hour int) float64 {
	switch {
	case hour <= 6:
		return 2.0
	case hour <= 8:
		return 1.5
	case hour <= 11:
		return 1.0
	case hour <= 13:
		return 1.5
	case hour <= 17:
		return 1.0
	case hour <= 19:
		return 1.3
	default:
		return 1.8
	}
}
