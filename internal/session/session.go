package session

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/fuse"
	"postureguard/internal/model"
	"postureguard/internal/scheduler"
	"postureguard/internal/scorer"
)

const (
	maxClockSkew  = 5 * time.Minute
	maxFutureSkew = time.Minute
)

// Session holds the per-user pipeline state: the channel fuser, the adaptive
// scorer and the reminder scheduler. All access goes through the mutex; the
// manager's pipeline goroutine is the only writer of readings.
type Session struct {
	id        string
	mu        sync.Mutex
	fuser     *fuse.Fuser
	scorer    *scorer.Scorer
	sched     *scheduler.Scheduler
	logger    *slog.Logger
	createdAt time.Time
	lastSeen  time.Time

	foreground bool
}

func newSession(id string, cfg *config.Config, logger *slog.Logger, onTrigger func(model.ReminderEvent)) *Session {
	now := time.Now().UTC()
	return &Session{
		id:        id,
		fuser:     fuse.New(),
		scorer:    scorer.New(cfg.Scoring.MinConfidence, cfg.Scoring.HistoryLimit),
		sched:     scheduler.New(id, cfg.Reminders, logger, onTrigger),
		logger:    logger,
		createdAt: now,
		lastSeen:  now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// HandleReading folds one reading into the fused sample and, when the sample
// is complete, runs scoring and reminder evaluation. Returns the score and
// whether it was accepted as a new reading.
func (s *Session) HandleReading(r model.Reading) (model.PostureScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.lastSeen = now
	r.Timestamp = clampTimestamp(r.Timestamp, now)

	sample, complete := s.fuser.Apply(r)
	if !complete {
		return model.PostureScore{}, false
	}
	sc, accepted := s.scorer.Process(sample)
	if !accepted {
		return sc, false
	}
	s.scorer.SetResponseRate(s.sched.Stats().ResponseRate)
	s.sched.Evaluate(sc, s.scorer.Behavior(), s.foreground)
	return sc, true
}

// TriggerReminder fires a reminder immediately regardless of interval, still
// honoring the single-active rule.
func (s *Session) TriggerReminder() (model.ReminderEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scorer.Current()
	if !ok {
		return model.ReminderEvent{}, false
	}
	return s.sched.Trigger(sc, s.scorer.Behavior(), s.foreground)
}

func (s *Session) Respond(resp model.ReminderResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.sched.Respond(resp)
	if ok {
		s.scorer.SetResponseRate(s.sched.Stats().ResponseRate)
	}
	return ok
}

func (s *Session) SetForeground(v bool) {
	s.mu.Lock()
	s.foreground = v
	s.mu.Unlock()
}

func (s *Session) SetDailyUsage(count int) {
	s.mu.Lock()
	s.scorer.SetDailyUsage(count)
	s.mu.Unlock()
}

func (s *Session) Score() (model.PostureScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.Current()
}

func (s *Session) Behavior() model.BehaviorProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.Behavior()
}

func (s *Session) Stats() model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.Stats()
}

func (s *Session) ScoreHistory() []model.PostureScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scorer.History()
}

func (s *Session) Reminders(limit int) []model.ReminderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.History(limit)
}

func (s *Session) ReminderStats() model.ReminderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Stats()
}

func (s *Session) ActiveReminder() (model.ReminderEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Active()
}

func (s *Session) UpdateReminderConfig(cfg config.ReminderConfig) {
	s.mu.Lock()
	s.sched.UpdateConfig(cfg)
	s.mu.Unlock()
}

func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.SessionSnapshot{
		SessionID:     s.id,
		UpdatedAt:     s.lastSeen,
		Behavior:      s.scorer.Behavior(),
		Stats:         s.scorer.Stats(),
		ReminderStats: s.sched.Stats(),
	}
	if sc, ok := s.scorer.Current(); ok {
		snap.Score = &sc
	}
	if ev, ok := s.sched.Active(); ok {
		snap.ActiveReminder = &ev
	}
	return snap
}

// Report renders a plain-text session summary.
func (s *Session) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.scorer.Stats()
	behavior := s.scorer.Behavior()
	rstats := s.sched.Stats()

	var b strings.Builder
	fmt.Fprintf(&b, "Posture Report for session %s\n", s.id)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	if sc, ok := s.scorer.Current(); ok {
		fmt.Fprintf(&b, "Current score: %.1f (%s)\n", sc.Overall, sc.Level)
		for _, rec := range sc.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	} else {
		b.WriteString("No readings scored yet.\n")
	}
	fmt.Fprintf(&b, "\nSamples scored: %d\n", stats.Count)
	fmt.Fprintf(&b, "Average: %.1f  Min: %.1f  Max: %.1f\n", stats.Mean, stats.Min, stats.Max)
	fmt.Fprintf(&b, "Trend: %+.3f per sample\n", stats.Trend)
	fmt.Fprintf(&b, "Session duration: %d samples, daily usage: %d\n", behavior.SessionDuration, behavior.DailyUsage)
	fmt.Fprintf(&b, "\nReminders triggered: %d, acknowledged: %d (rate %.0f%%)\n",
		rstats.TotalTriggered, rstats.Acknowledged, rstats.ResponseRate*100)
	if rstats.ConsecutiveIgnored > 0 {
		fmt.Fprintf(&b, "Currently ignored in a row: %d\n", rstats.ConsecutiveIgnored)
	}
	return b.String()
}

// Reset clears scoring and reminder state but keeps the session alive.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fuser.Reset()
	s.scorer.Reset()
	s.sched.Reset()
}

// Close stops the reminder expiry timer. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Stop()
}

func clampTimestamp(ts, now time.Time) time.Time {
	if ts.IsZero() {
		return now
	}
	if now.Sub(ts) > maxClockSkew {
		return now
	}
	if ts.Sub(now) > maxFutureSkew {
		return now
	}
	return ts
}
