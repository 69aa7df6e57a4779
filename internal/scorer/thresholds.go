package scorer

import "postureguard/internal/score"

// Thresholds are the personalized tilt/distance tolerances. Always strictly
// positive; replaced wholesale, never mutated in place.
type Thresholds struct {
	Tilt     float64 `json:"tilt"`
	Distance float64 `json:"distance"`
}

// ThresholdsForAverage tightens the tolerances for consistently good users
// and loosens them for consistently poor ones.
func ThresholdsForAverage(avg float64) Thresholds {
	switch {
	case avg > 85:
		return Thresholds{Tilt: score.TiltTolerance * 0.8, Distance: score.DistanceTolerance * 0.8}
	case avg > 70:
		return Thresholds{Tilt: score.TiltTolerance, Distance: score.DistanceTolerance}
	default:
		return Thresholds{Tilt: score.TiltTolerance * 1.2, Distance: score.DistanceTolerance * 1.2}
	}
}
