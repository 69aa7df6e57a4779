package scorer

import (
	"postureguard/internal/model"
	"postureguard/internal/score"
)

const (
	DefaultMinConfidence = 0.6
	DefaultHistoryLimit  = 50

	trendWindow    = 10
	trendMinPoints = 5
)

// Smoothing weights: index 0 applies to the new value, the rest to the most
// recent history entries. Normalized by the sum of weights actually used.
var smoothingWeights = []float64{0.4, 0.25, 0.2, 0.1, 0.05}

// Scorer fuses a stream of samples into a stable score with personalized
// thresholds, temporal smoothing and rolling behavior statistics. It is not
// safe for concurrent use; the owning session serializes access.
type Scorer struct {
	minConfidence float64
	historyLimit  int

	history    []model.PostureScore
	behavior   model.BehaviorProfile
	thresholds Thresholds
	last       model.PostureScore
	hasScore   bool
}

func New(minConfidence float64, historyLimit int) *Scorer {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Scorer{
		minConfidence: minConfidence,
		historyLimit:  historyLimit,
		thresholds:    ThresholdsForAverage(0),
	}
}

// Process consumes one fused sample. Unreliable samples (no face, low
// confidence, unstable device) re-emit the last accepted score unchanged and
// report accepted=false: no history entry, no behavior update.
func (s *Scorer) Process(sample model.PostureSample) (model.PostureScore, bool) {
	if !sample.FaceDetected || sample.Confidence <= s.minConfidence || !sample.DeviceStable {
		return s.last, false
	}

	base := score.Compute(sample)
	s.thresholds = ThresholdsForAverage(s.behavior.AverageScore)

	adjTilt := score.TiltScore(sample.TiltAngle, s.thresholds.Tilt)
	adjDistance := score.DistanceScore(sample.HeadDistance, s.thresholds.Distance)
	overall := score.WeightTilt*adjTilt + score.WeightDistance*adjDistance + score.WeightPosition*base.Position

	switch {
	case s.behavior.ImprovementTrend > 0.1:
		overall *= 1.1
	case s.behavior.ImprovementTrend < -0.1:
		overall *= 0.9
	}
	overall = score.Clamp(overall)
	overall = s.smooth(overall)

	result := model.PostureScore{
		Timestamp:       sample.Timestamp,
		Overall:         overall,
		Tilt:            adjTilt,
		Distance:        adjDistance,
		Position:        base.Position,
		Level:           model.QualityFor(overall),
		Recommendations: base.Recommendations,
	}

	s.history = append(s.history, result)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	s.updateBehavior()
	s.thresholds = ThresholdsForAverage(s.behavior.AverageScore)

	s.last = result
	s.hasScore = true
	return result, true
}

// smooth blends the new overall with up to the last four history overalls
// using the fixed descending weights. An empty history returns the input
// unchanged.
func (s *Scorer) smooth(overall float64) float64 {
	values := []float64{overall}
	for i := len(s.history) - 1; i >= 0 && len(values) < len(smoothingWeights); i-- {
		values = append(values, s.history[i].Overall)
	}
	var sum, weightSum float64
	for i, v := range values {
		sum += v * smoothingWeights[i]
		weightSum += smoothingWeights[i]
	}
	if weightSum == 0 {
		return overall
	}
	return sum / weightSum
}

func (s *Scorer) updateBehavior() {
	if len(s.history) > 0 {
		var sum float64
		for _, h := range s.history {
			sum += h.Overall
		}
		s.behavior.AverageScore = sum / float64(len(s.history))
	}
	if slope, ok := s.trendSlope(); ok {
		s.behavior.ImprovementTrend = slope
	}
	s.behavior.SessionDuration++
}

// trendSlope is the least-squares slope of the last up-to-10 overalls against
// their index. Fewer than 5 points leaves the trend unchanged.
func (s *Scorer) trendSlope() (float64, bool) {
	start := len(s.history) - trendWindow
	if start < 0 {
		start = 0
	}
	recent := s.history[start:]
	n := len(recent)
	if n < trendMinPoints {
		return 0, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, h := range recent {
		x := float64(i)
		sumX += x
		sumY += h.Overall
		sumXY += x * h.Overall
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (fn*sumXY - sumX*sumY) / denom, true
}

func (s *Scorer) Current() (model.PostureScore, bool) {
	return s.last, s.hasScore
}

func (s *Scorer) History() []model.PostureScore {
	out := make([]model.PostureScore, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Scorer) Behavior() model.BehaviorProfile {
	return s.behavior
}

func (s *Scorer) Thresholds() Thresholds {
	return s.thresholds
}

func (s *Scorer) SetResponseRate(rate float64) {
	s.behavior.ReminderResponseRate = rate
}

func (s *Scorer) SetDailyUsage(count int) {
	s.behavior.DailyUsage = count
}

// Stats is computed on demand from the current history, never cached.
func (s *Scorer) Stats() model.SessionStats {
	stats := model.SessionStats{Count: len(s.history), Trend: s.behavior.ImprovementTrend}
	if len(s.history) == 0 {
		return stats
	}
	stats.Min = s.history[0].Overall
	stats.Max = s.history[0].Overall
	var sum float64
	for _, h := range s.history {
		sum += h.Overall
		if h.Overall > stats.Max {
			stats.Max = h.Overall
		}
		if h.Overall < stats.Min {
			stats.Min = h.Overall
		}
	}
	stats.Mean = sum / float64(len(s.history))
	return stats
}

// Reset clears history and behavior to defaults. Daily usage survives; the
// thresholds are recomputed on the next accepted sample.
func (s *Scorer) Reset() {
	daily := s.behavior.DailyUsage
	s.history = nil
	s.behavior = model.BehaviorProfile{DailyUsage: daily}
	s.last = model.PostureScore{}
	s.hasScore = false
}
