package score

import (
	"math"

	"postureguard/internal/model"
)

// Fixed tolerances of the base model. The adaptive scorer substitutes its own
// tilt/distance tolerances through TiltScore and DistanceScore.
const (
	TiltTolerance     = 30.0
	DistanceIdeal     = 50.0
	DistanceTolerance = 20.0
	RotationTolerance = 45.0

	WeightTilt     = 0.4
	WeightDistance = 0.4
	WeightPosition = 0.2

	recommendThreshold = 60.0
)

// Compute maps a single sample to its composite score. Total: invalid or
// unknown distance yields a distance sub-score of 0, never an error.
func Compute(sample model.PostureSample) model.PostureScore {
	tilt := TiltScore(sample.TiltAngle, TiltTolerance)
	distance := DistanceScore(sample.HeadDistance, DistanceTolerance)
	position := PositionScore(sample.OffsetX, sample.OffsetY, sample.Rotation)
	overall := Clamp(WeightTilt*tilt + WeightDistance*distance + WeightPosition*position)
	return model.PostureScore{
		Timestamp:       sample.Timestamp,
		Overall:         overall,
		Tilt:            tilt,
		Distance:        distance,
		Position:        position,
		Level:           model.QualityFor(overall),
		Recommendations: Recommendations(sample, tilt, distance, position),
	}
}

func TiltScore(angle, tolerance float64) float64 {
	if tolerance <= 0 {
		tolerance = TiltTolerance
	}
	return Clamp(100 - math.Abs(angle)/tolerance*100)
}

func DistanceScore(distance, tolerance float64) float64 {
	if distance <= 0 {
		return 0
	}
	if tolerance <= 0 {
		tolerance = DistanceTolerance
	}
	return Clamp(100 - math.Abs(distance-DistanceIdeal)/tolerance*100)
}

func PositionScore(offsetX, offsetY, rotation float64) float64 {
	deviation := (math.Abs(offsetX)/100 + math.Abs(offsetY)/100 + math.Abs(rotation)/RotationTolerance) / 3
	return Clamp(100 - deviation*100)
}

// Recommendations runs the threshold checks in fixed order: tilt, distance,
// position. When nothing fires it returns the single affirming message.
func Recommendations(sample model.PostureSample, tilt, distance, position float64) []string {
	var out []string
	if tilt < recommendThreshold {
		if sample.TiltAngle > 0 {
			out = append(out, "Your head is tilted too far forward. Lift your chin and straighten your neck.")
		} else {
			out = append(out, "Your head is tilted too far back. Bring your chin down to a neutral position.")
		}
	}
	if distance < recommendThreshold {
		switch {
		case sample.HeadDistance <= 0:
			out = append(out, "Sit about an arm's length (50 cm) from the screen.")
		case sample.HeadDistance < DistanceIdeal:
			out = append(out, "You are too close to the screen. Move back a little.")
		default:
			out = append(out, "You are too far from the screen. Move in a little.")
		}
	}
	if position < recommendThreshold {
		out = append(out, "Center yourself in front of the screen and square your shoulders.")
	}
	if len(out) == 0 {
		out = append(out, "Great posture, keep it up!")
	}
	return out
}

func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
