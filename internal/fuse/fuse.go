package fuse

import (
	"time"

	"postureguard/internal/model"
)

// Fuser merges the tilt, vision and stability channels into fused samples.
// It buffers the latest value per channel and emits a sample on every update
// once all channels have reported at least once, holding the last known value
// for channels without fresh data.
type Fuser struct {
	tilt      *model.TiltReading
	vision    *model.VisionReading
	stability *model.StabilityReading

	tiltAt      time.Time
	visionAt    time.Time
	stabilityAt time.Time
}

func New() *Fuser {
	return &Fuser{}
}

// Apply absorbs one reading. The second return is false until every channel
// has a value.
func (f *Fuser) Apply(r model.Reading) (model.PostureSample, bool) {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	switch {
	case r.Tilt != nil:
		v := *r.Tilt
		f.tilt = &v
		f.tiltAt = ts
	case r.Vision != nil:
		v := *r.Vision
		f.vision = &v
		f.visionAt = ts
	case r.Stability != nil:
		v := *r.Stability
		f.stability = &v
		f.stabilityAt = ts
	default:
		return model.PostureSample{}, false
	}
	return f.Latest()
}

// Latest returns the sample fused from the most recent value of each channel.
func (f *Fuser) Latest() (model.PostureSample, bool) {
	if f.tilt == nil || f.vision == nil || f.stability == nil {
		return model.PostureSample{}, false
	}
	ts := f.tiltAt
	if f.visionAt.After(ts) {
		ts = f.visionAt
	}
	if f.stabilityAt.After(ts) {
		ts = f.stabilityAt
	}
	return model.PostureSample{
		Timestamp:    ts,
		TiltAngle:    f.tilt.Angle,
		HeadDistance: f.vision.Distance,
		OffsetX:      f.vision.OffsetX,
		OffsetY:      f.vision.OffsetY,
		Rotation:     f.vision.Rotation,
		Confidence:   f.vision.Confidence,
		FaceDetected: f.vision.FaceDetected,
		DeviceStable: f.stability.Stable,
	}, true
}

func (f *Fuser) Reset() {
	*f = Fuser{}
}
