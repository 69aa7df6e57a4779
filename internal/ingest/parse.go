package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"postureguard/internal/model"
)

// readingPayload is the wire shape shared by every source. The channel may be
// stated explicitly or inferred from which measurement fields are present.
type readingPayload struct {
	SessionID    string   `json:"session_id"`
	Channel      string   `json:"channel"`
	Timestamp    string   `json:"timestamp"`
	Angle        *float64 `json:"angle"`
	Distance     *float64 `json:"distance_cm"`
	OffsetX      *float64 `json:"offset_x"`
	OffsetY      *float64 `json:"offset_y"`
	Rotation     *float64 `json:"rotation"`
	Confidence   *float64 `json:"confidence"`
	FaceDetected *bool    `json:"face_detected"`
	Stable       *bool    `json:"stable"`
}

// ParseReading decodes one JSON reading. The default session ID applies when
// the payload names none; a missing or unparsable timestamp becomes the
// arrival time.
func ParseReading(data []byte, defaultSessionID string) (model.Reading, error) {
	var p readingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	return buildReading(p, defaultSessionID)
}

func buildReading(p readingPayload, defaultSessionID string) (model.Reading, error) {
	r := model.Reading{
		SessionID: strings.TrimSpace(p.SessionID),
		Timestamp: parseTimestamp(p.Timestamp),
	}
	if r.SessionID == "" {
		r.SessionID = defaultSessionID
	}

	channel := model.ReadingChannel(strings.ToLower(strings.TrimSpace(p.Channel)))
	if channel == "" {
		channel = inferChannel(p)
	}
	switch channel {
	case model.ChannelTilt:
		if p.Angle == nil {
			return model.Reading{}, errors.New("tilt reading without angle")
		}
		r.Channel = model.ChannelTilt
		r.Tilt = &model.TiltReading{Angle: *p.Angle}
	case model.ChannelVision:
		v := &model.VisionReading{}
		if p.Distance != nil {
			v.Distance = *p.Distance
		}
		if p.OffsetX != nil {
			v.OffsetX = *p.OffsetX
		}
		if p.OffsetY != nil {
			v.OffsetY = *p.OffsetY
		}
		if p.Rotation != nil {
			v.Rotation = *p.Rotation
		}
		if p.Confidence != nil {
			v.Confidence = *p.Confidence
		}
		if p.FaceDetected != nil {
			v.FaceDetected = *p.FaceDetected
		}
		r.Channel = model.ChannelVision
		r.Vision = v
	case model.ChannelStability:
		if p.Stable == nil {
			return model.Reading{}, errors.New("stability reading without stable flag")
		}
		r.Channel = model.ChannelStability
		r.Stability = &model.StabilityReading{Stable: *p.Stable}
	default:
		return model.Reading{}, fmt.Errorf("unknown reading channel: %q", p.Channel)
	}
	return r, nil
}

func inferChannel(p readingPayload) model.ReadingChannel {
	switch {
	case p.Angle != nil:
		return model.ChannelTilt
	case p.Distance != nil || p.Confidence != nil || p.FaceDetected != nil:
		return model.ChannelVision
	case p.Stable != nil:
		return model.ChannelStability
	default:
		return ""
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC()
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
