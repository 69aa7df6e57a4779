package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

func testManager(t *testing.T, mutate func(*config.Config)) *Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Reminders.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	return NewManager(config.NewManagerFromConfig(cfg), nil, nil, nil, nil)
}

func feedSample(t *testing.T, m *Manager, sessionID string, angle, distance float64) (model.PostureScore, bool) {
	t.Helper()
	now := time.Now().UTC()
	m.Process(model.Reading{
		SessionID: sessionID,
		Channel:   model.ChannelTilt,
		Timestamp: now,
		Tilt:      &model.TiltReading{Angle: angle},
	})
	m.Process(model.Reading{
		SessionID: sessionID,
		Channel:   model.ChannelStability,
		Timestamp: now,
		Stability: &model.StabilityReading{Stable: true},
	})
	return m.Process(model.Reading{
		SessionID: sessionID,
		Channel:   model.ChannelVision,
		Timestamp: now,
		Vision: &model.VisionReading{
			Distance:     distance,
			Confidence:   0.95,
			FaceDetected: true,
		},
	})
}

func TestManagerScoresCompleteSamples(t *testing.T) {
	m := testManager(t, nil)

	sc, accepted := m.Process(model.Reading{
		SessionID: "a",
		Channel:   model.ChannelTilt,
		Timestamp: time.Now().UTC(),
		Tilt:      &model.TiltReading{Angle: 0},
	})
	if accepted {
		t.Fatalf("incomplete sample should not score, got %+v", sc)
	}

	sc, accepted = feedSample(t, m, "a", 0, 50)
	if !accepted {
		t.Fatalf("complete reliable sample should score")
	}
	if sc.Overall != 100 || sc.Level != model.QualityExcellent {
		t.Fatalf("perfect sample: %.1f %s", sc.Overall, sc.Level)
	}

	sess, ok := m.Get("a")
	if !ok {
		t.Fatalf("session missing")
	}
	if got, ok := sess.Score(); !ok || got.Overall != 100 {
		t.Fatalf("current score: %+v %v", got, ok)
	}
}

func TestManagerKeepsSessionsSeparate(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "good", 0, 50)
	feedSample(t, m, "bad", 60, 120)

	goodSess, _ := m.Get("good")
	badSess, _ := m.Get("bad")
	good, _ := goodSess.Score()
	bad, _ := badSess.Score()
	if good.Overall <= bad.Overall {
		t.Fatalf("sessions leaked state: good=%.1f bad=%.1f", good.Overall, bad.Overall)
	}
	if got := m.List(); len(got) != 2 || got[0] != "bad" || got[1] != "good" {
		t.Fatalf("list: %v", got)
	}
}

func TestManagerSessionLimit(t *testing.T) {
	m := testManager(t, func(c *config.Config) { c.Sessions.Limit = 1 })
	if _, accepted := feedSample(t, m, "first", 0, 50); !accepted {
		t.Fatalf("first session rejected")
	}
	if _, accepted := feedSample(t, m, "second", 0, 50); accepted {
		t.Fatalf("second session should be dropped at limit")
	}
	if _, ok := m.Get("second"); ok {
		t.Fatalf("second session should not exist")
	}
}

func TestEmptySessionIDUsesDefault(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "", 0, 50)
	if _, ok := m.Get("default"); !ok {
		t.Fatalf("expected default session")
	}
}

func TestSessionReset(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "a", 0, 50)
	if !m.Reset("a") {
		t.Fatalf("reset should find session")
	}
	sess, _ := m.Get("a")
	if _, ok := sess.Score(); ok {
		t.Fatalf("score should be cleared after reset")
	}
	if m.Reset("missing") {
		t.Fatalf("reset of unknown session should report false")
	}
}

func TestIdleEviction(t *testing.T) {
	m := testManager(t, func(c *config.Config) { c.Sessions.IdleTTL = time.Minute })
	feedSample(t, m, "a", 0, 50)

	sess, _ := m.Get("a")
	sess.mu.Lock()
	sess.lastSeen = time.Now().UTC().Add(-2 * time.Minute)
	sess.mu.Unlock()

	m.evictIdle(time.Now().UTC())
	if _, ok := m.Get("a"); ok {
		t.Fatalf("idle session should be evicted")
	}
}

func TestSnapshotContents(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "a", 0, 50)
	sess, _ := m.Get("a")
	snap := sess.Snapshot()
	if snap.SessionID != "a" || snap.Score == nil || snap.Score.Overall != 100 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.Stats.Count != 1 {
		t.Fatalf("stats count: %d", snap.Stats.Count)
	}
}

func TestReportMentionsScoreAndSession(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "desk", 0, 50)
	sess, _ := m.Get("desk")
	report := sess.Report()
	if !strings.Contains(report, "desk") || !strings.Contains(report, "100.0") {
		t.Fatalf("report missing fields:\n%s", report)
	}

	fresh := newSession("empty", config.DefaultConfig(), nil, nil)
	if !strings.Contains(fresh.Report(), "No readings scored yet") {
		t.Fatalf("empty report should say so")
	}
}

func TestUpdateReminderConfigFansOut(t *testing.T) {
	m := testManager(t, nil)
	feedSample(t, m, "a", 0, 50)
	feedSample(t, m, "b", 0, 50)

	next := config.DefaultConfig().Reminders
	next.MinInterval = 42 * time.Second
	m.UpdateReminderConfig(next)

	for _, id := range []string{"a", "b"} {
		sess, _ := m.Get(id)
		if got := sess.sched.Config().MinInterval; got != 42*time.Second {
			t.Fatalf("session %s config not updated: %s", id, got)
		}
	}
}

func waitStopped(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		m.mu.Lock()
		running := m.running
		m.mu.Unlock()
		if !running {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("manager did not stop")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	m := testManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan model.Reading, 1)

	m.Start(ctx, readings)
	m.Start(ctx, readings)
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		t.Fatalf("manager should be running")
	}

	cancel()
	waitStopped(t, m)

	// Runnable again after a stop.
	ctx2, cancel2 := context.WithCancel(context.Background())
	m.Start(ctx2, readings)
	cancel2()
	waitStopped(t, m)
}

func TestStopCancelsExpiryTimers(t *testing.T) {
	m := testManager(t, func(c *config.Config) {
		c.Reminders.Enabled = true
		c.Reminders.ExpiryTimeout = 150 * time.Millisecond
	})
	ctx, cancel := context.WithCancel(context.Background())
	readings := make(chan model.Reading, 1)
	m.Start(ctx, readings)

	feedSample(t, m, "a", 60, 120)
	sess, _ := m.Get("a")
	if _, ok := sess.TriggerReminder(); !ok {
		t.Fatalf("trigger failed")
	}

	cancel()
	waitStopped(t, m)
	time.Sleep(250 * time.Millisecond)

	if got := sess.ReminderStats().ConsecutiveIgnored; got != 0 {
		t.Fatalf("expiry fired after monitoring stop: consecutive ignored %d", got)
	}
	if _, ok := sess.ActiveReminder(); !ok {
		t.Fatalf("active reminder should stay unresolved after stop")
	}
}

func TestClampTimestamp(t *testing.T) {
	now := time.Now().UTC()
	if got := clampTimestamp(time.Time{}, now); !got.Equal(now) {
		t.Fatalf("zero timestamp: %s", got)
	}
	if got := clampTimestamp(now.Add(-time.Hour), now); !got.Equal(now) {
		t.Fatalf("stale timestamp: %s", got)
	}
	if got := clampTimestamp(now.Add(time.Hour), now); !got.Equal(now) {
		t.Fatalf("future timestamp: %s", got)
	}
	recent := now.Add(-time.Second)
	if got := clampTimestamp(recent, now); !got.Equal(recent) {
		t.Fatalf("recent timestamp altered: %s", got)
	}
}
