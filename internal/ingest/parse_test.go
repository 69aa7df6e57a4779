package ingest

import (
	"testing"
	"time"

	"postureguard/internal/model"
)

func TestParseTiltReading(t *testing.T) {
	line := `{"session_id":"desk-1","channel":"tilt","timestamp":"2026-08-26T09:15:00Z","angle":18.5}`
	r, err := ParseReading([]byte(line), "default")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.SessionID != "desk-1" || r.Channel != model.ChannelTilt {
		t.Fatalf("session/channel mismatch: %s %s", r.SessionID, r.Channel)
	}
	if r.Tilt == nil || r.Tilt.Angle != 18.5 {
		t.Fatalf("tilt payload: %+v", r.Tilt)
	}
	want := time.Date(2026, 8, 26, 9, 15, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Fatalf("timestamp: %s", r.Timestamp)
	}
}

func TestParseInfersChannel(t *testing.T) {
	r, err := ParseReading([]byte(`{"angle":5}`), "default")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Channel != model.ChannelTilt || r.SessionID != "default" {
		t.Fatalf("inferred: %s %s", r.Channel, r.SessionID)
	}

	r, err = ParseReading([]byte(`{"distance_cm":48,"confidence":0.9,"face_detected":true}`), "default")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Channel != model.ChannelVision || r.Vision == nil || !r.Vision.FaceDetected {
		t.Fatalf("vision inference mismatch")
	}

	r, err = ParseReading([]byte(`{"stable":false}`), "default")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Channel != model.ChannelStability || r.Stability == nil || r.Stability.Stable {
		t.Fatalf("stability inference mismatch")
	}
}

func TestParseRejectsIncomplete(t *testing.T) {
	if _, err := ParseReading([]byte(`{"channel":"tilt"}`), "default"); err == nil {
		t.Fatalf("expected error for tilt without angle")
	}
	if _, err := ParseReading([]byte(`{"channel":"stability"}`), "default"); err == nil {
		t.Fatalf("expected error for stability without flag")
	}
	if _, err := ParseReading([]byte(`{"session_id":"x"}`), "default"); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
	if _, err := ParseReading([]byte(`not json`), "default"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseUnixTimestamps(t *testing.T) {
	r, err := ParseReading([]byte(`{"channel":"tilt","angle":1,"timestamp":"1767225600"}`), "d")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Timestamp.Year() != 2026 {
		t.Fatalf("unix seconds: %s", r.Timestamp)
	}

	r, err = ParseReading([]byte(`{"channel":"tilt","angle":1,"timestamp":"1767225600000"}`), "d")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Timestamp.Year() != 2026 {
		t.Fatalf("unix millis: %s", r.Timestamp)
	}
}

func TestParseMissingTimestampUsesNow(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	r, err := ParseReading([]byte(`{"channel":"stability","stable":true}`), "d")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if r.Timestamp.Before(before) {
		t.Fatalf("expected arrival time, got %s", r.Timestamp)
	}
}
