package scheduler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"postureguard/internal/config"
	"postureguard/internal/model"
	"postureguard/internal/policy"
)

// Scheduler owns reminder timing for one session. Lifecycle per reminder:
// Idle -> Active -> resolved by response or expiry -> Idle. At most one
// reminder is active; a trigger attempt while one is active is a no-op.
type Scheduler struct {
	sessionID string
	logger    *slog.Logger
	cfg       atomic.Value // config.ReminderConfig
	onTrigger func(model.ReminderEvent)

	mu                 sync.Mutex
	active             *model.ReminderEvent
	expiry             *time.Timer
	lastTriggered      time.Time
	snoozedUntil       time.Time
	totalTriggered     int
	acknowledged       int
	consecutiveIgnored int
	history            *History

	now func() time.Time
}

func New(sessionID string, cfg config.ReminderConfig, logger *slog.Logger, onTrigger func(model.ReminderEvent)) *Scheduler {
	s := &Scheduler{
		sessionID: sessionID,
		logger:    logger,
		onTrigger: onTrigger,
		history:   NewHistory(cfg.HistoryLimit),
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.cfg.Store(cfg)
	s.lastTriggered = s.now()
	return s
}

func (s *Scheduler) Config() config.ReminderConfig {
	return s.cfg.Load().(config.ReminderConfig)
}

// UpdateConfig replaces the whole configuration atomically. In-flight timers
// and the active reminder are untouched until the next evaluation.
func (s *Scheduler) UpdateConfig(cfg config.ReminderConfig) {
	s.cfg.Store(cfg)
}

// Evaluate decides whether to fire a reminder for the given score and fires
// it when due. Critical quality bypasses the adaptive interval once the
// minimum interval has elapsed.
func (s *Scheduler) Evaluate(score model.PostureScore, behavior model.BehaviorProfile, appInForeground bool) (model.ReminderEvent, bool) {
	cfg := s.Config()
	if !cfg.Enabled {
		return model.ReminderEvent{}, false
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return model.ReminderEvent{}, false
	}
	if now.Before(s.snoozedUntil) {
		return model.ReminderEvent{}, false
	}

	elapsed := now.Sub(s.lastTriggered)
	due := false
	if score.Level == model.QualityCritical {
		due = elapsed >= cfg.MinInterval
	} else {
		due = elapsed >= Interval(score.Level, behavior, cfg, now.Hour())
	}
	if !due {
		return model.ReminderEvent{}, false
	}
	return s.triggerLocked(cfg, score, behavior, appInForeground, now, elapsed, false), true
}

// Trigger fires a reminder immediately on behalf of the user, still
// respecting the single-active invariant.
func (s *Scheduler) Trigger(score model.PostureScore, behavior model.BehaviorProfile, appInForeground bool) (model.ReminderEvent, bool) {
	cfg := s.Config()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return model.ReminderEvent{}, false
	}
	return s.triggerLocked(cfg, score, behavior, appInForeground, now, now.Sub(s.lastTriggered), true), true
}

func (s *Scheduler) triggerLocked(cfg config.ReminderConfig, score model.PostureScore, behavior model.BehaviorProfile, appInForeground bool, now time.Time, elapsed time.Duration, userTriggered bool) model.ReminderEvent {
	level := policy.Level(score, behavior, s.consecutiveIgnored, elapsed)
	// The threshold stacks one forced step on top of the ignored-count
	// ladder once the streak reaches it; zero disables the knob.
	if cfg.EscalationThreshold > 0 && s.consecutiveIgnored >= cfg.EscalationThreshold {
		level = level.Escalate(1)
	}
	event := model.ReminderEvent{
		ID:            uuid.NewString(),
		SessionID:     s.sessionID,
		Level:         level,
		Type:          policy.Type(level, cfg, appInForeground, now.Hour()),
		Message:       policy.Message(score, level, behavior),
		Score:         score,
		HapticPattern: level.HapticPattern(),
		CreatedAt:     now,
		UserTriggered: userTriggered,
	}

	s.active = &event
	s.lastTriggered = now
	s.totalTriggered++
	s.history.Add(event)

	timeout := cfg.ExpiryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	id := event.ID
	s.expiry = time.AfterFunc(timeout, func() { s.expire(id, timeout) })

	if s.logger != nil {
		s.logger.Info("reminder triggered",
			"session_id", s.sessionID,
			"level", event.Level.Label(),
			"type", string(event.Type),
			"quality", string(score.Level),
			"consecutive_ignored", s.consecutiveIgnored,
		)
	}
	if s.onTrigger != nil {
		s.onTrigger(event)
	}
	return event
}

// Respond reconciles an explicit user response against the active reminder.
// Returns false when nothing is active.
func (s *Scheduler) Respond(resp model.ReminderResponse) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	s.stopExpiryLocked()
	s.resolveLocked(resp)
	return true
}

// expire fires when the timer outlives the user: synthesize an ignored
// response and process it like an explicit one.
func (s *Scheduler) expire(eventID string, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.ID != eventID {
		return
	}
	if s.logger != nil {
		s.logger.Info("reminder expired", "session_id", s.sessionID, "event_id", eventID)
	}
	s.resolveLocked(model.ReminderResponse{Ignored: true, Latency: timeout})
}

func (s *Scheduler) resolveLocked(resp model.ReminderResponse) {
	switch {
	case resp.Action == model.ActionCorrectedPosture:
		s.consecutiveIgnored = 0
		s.acknowledged++
	case resp.Action == model.ActionPostponed:
		// Neither acknowledged nor ignored; just clears the slot.
	case resp.Action == model.ActionDisabledTemporarily:
		s.snoozedUntil = s.now().Add(s.Config().MaxInterval)
	default:
		s.consecutiveIgnored++
	}
	s.active = nil
}

func (s *Scheduler) stopExpiryLocked() {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

// Stop cancels the expiry timer. Idempotent; the active reminder, if any,
// stays unresolved.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopExpiryLocked()
}

func (s *Scheduler) Active() (model.ReminderEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.ReminderEvent{}, false
	}
	return *s.active, true
}

func (s *Scheduler) History(limit int) []model.ReminderEvent {
	return s.history.List(limit)
}

func (s *Scheduler) Stats() model.ReminderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := model.ReminderStats{
		TotalTriggered:     s.totalTriggered,
		Acknowledged:       s.acknowledged,
		ConsecutiveIgnored: s.consecutiveIgnored,
	}
	if s.totalTriggered > 0 {
		stats.ResponseRate = float64(s.acknowledged) / float64(s.totalTriggered)
	}
	stats.MeanInterval = s.history.MeanInterval()
	return stats
}

// Reset clears counters and history; the active slot and timers are released.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopExpiryLocked()
	s.active = nil
	s.totalTriggered = 0
	s.acknowledged = 0
	s.consecutiveIgnored = 0
	s.snoozedUntil = time.Time{}
	s.lastTriggered = s.now()
	s.history.Clear()
}
