package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
	"postureguard/internal/snapshot"
	"postureguard/internal/storage"
)

// Manager owns every live session and the single pipeline goroutine that
// consumes readings, which keeps per-session processing strictly ordered.
type Manager struct {
	cfg       *config.Manager
	logger    *slog.Logger
	store     storage.Store
	snapshots *snapshot.Store
	publisher snapshot.Publisher

	mu       sync.Mutex
	sessions map[string]*Session
	usageDay string
	usage    int
	running  bool
	started  time.Time
}

func NewManager(cfg *config.Manager, logger *slog.Logger, store storage.Store, snapshots *snapshot.Store, publisher snapshot.Publisher) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		snapshots: snapshots,
		publisher: publisher,
		sessions:  make(map[string]*Session),
		started:   time.Now().UTC(),
	}
}

// Start launches the pipeline consumer and the stats ticker. Calling Start
// while already running is a no-op; cancelling ctx stops monitoring and
// closes every live session so no reminder timer outlives it.
func (m *Manager) Start(ctx context.Context, in <-chan model.Reading) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Warn("session manager already started")
		}
		return
	}
	m.running = true
	m.mu.Unlock()

	go func() {
		for {
			select {
			case r := <-in:
				m.Process(r)
			case <-ctx.Done():
				m.shutdown()
				return
			}
		}
	}()
	go func() {
		interval := m.cfg.Get().Sessions.StatsInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.snapshotAll(ctx)
				m.evictIdle(time.Now().UTC())
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	m.running = false
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	if m.logger != nil {
		m.logger.Info("monitoring stopped", "sessions", len(sessions))
	}
}

func (m *Manager) Process(r model.Reading) (model.PostureScore, bool) {
	sess, ok := m.getOrCreate(r.SessionID)
	if !ok {
		return model.PostureScore{}, false
	}
	return sess.HandleReading(r)
}

func (m *Manager) getOrCreate(id string) (*Session, bool) {
	if id == "" {
		id = "default"
	}
	cfg := m.cfg.Get()

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess, true
	}
	if limit := cfg.Sessions.Limit; limit > 0 && len(m.sessions) >= limit {
		if m.logger != nil {
			m.logger.Warn("session limit reached, dropping reading", "session_id", id, "limit", limit)
		}
		return nil, false
	}
	sess := newSession(id, cfg, m.logger, m.onTrigger)
	day := time.Now().UTC().Format("2006-01-02")
	if day != m.usageDay {
		m.usageDay = day
		m.usage = 0
	}
	m.usage++
	sess.SetDailyUsage(m.usage)
	m.sessions[id] = sess
	if m.logger != nil {
		m.logger.Info("session started", "session_id", id, "sessions", len(m.sessions))
	}
	return sess, true
}

func (m *Manager) onTrigger(ev model.ReminderEvent) {
	if m.store != nil {
		_ = m.store.SaveReminder(context.Background(), ev)
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) ActiveReminders() []model.ReminderEvent {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	out := make([]model.ReminderEvent, 0)
	for _, sess := range sessions {
		if ev, ok := sess.ActiveReminder(); ok {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// UpdateReminderConfig fans the replaced reminder policy out to every live
// scheduler. Active reminders and running timers are not interrupted.
func (m *Manager) UpdateReminderConfig(cfg config.ReminderConfig) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.UpdateReminderConfig(cfg)
	}
}

func (m *Manager) Reset(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	sess.Reset()
	return true
}

func (m *Manager) ResetAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.Reset()
	}
	if m.snapshots != nil {
		m.snapshots.Clear()
	}
	if m.logger != nil {
		m.logger.Info("all sessions reset", "sessions", len(sessions))
	}
}

func (m *Manager) Started() time.Time { return m.started }

func (m *Manager) snapshotAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		snap := sess.Snapshot()
		if m.snapshots != nil {
			m.snapshots.Update(snap)
		}
		if m.publisher != nil {
			if err := m.publisher.Publish(ctx, snap); err != nil && m.logger != nil {
				m.logger.Warn("snapshot publish failed", "session_id", snap.SessionID, "err", err)
			}
		}
		if m.store != nil {
			_ = m.store.SaveStats(ctx, snap.SessionID, snap.Stats)
		}
	}
}

func (m *Manager) evictIdle(now time.Time) {
	ttl := m.cfg.Get().Sessions.IdleTTL
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	expired := make([]*Session, 0)
	for id, sess := range m.sessions {
		if now.Sub(sess.LastSeen()) > ttl {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		if m.snapshots != nil {
			m.snapshots.Delete(sess.ID())
		}
		if m.logger != nil {
			m.logger.Info("idle session evicted", "session_id", sess.ID())
		}
	}
}
