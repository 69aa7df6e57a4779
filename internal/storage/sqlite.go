package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"postureguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:postureguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			session_id TEXT NOT NULL,
			level TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			overall REAL NOT NULL,
			quality TEXT NOT NULL,
			user_triggered INTEGER NOT NULL,
			score_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_session_ts ON reminders(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS session_stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			session_id TEXT NOT NULL,
			mean REAL NOT NULL,
			min REAL NOT NULL,
			max REAL NOT NULL,
			count INTEGER NOT NULL,
			trend REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_stats_session_ts ON session_stats(session_id, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveReminder(ctx context.Context, event model.ReminderEvent) error {
	if s.db == nil || event.ID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reminders (id, ts, session_id, level, type, message, overall, quality, user_triggered, score_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.CreatedAt.UTC(),
		event.SessionID,
		event.Level.Label(),
		string(event.Type),
		event.Message,
		event.Score.Overall,
		string(event.Score.Level),
		event.UserTriggered,
		encodeJSON(event.Score),
	)
	return err
}

func (s *sqliteStore) SaveStats(ctx context.Context, sessionID string, stats model.SessionStats) error {
	if s.db == nil || sessionID == "" || stats.Count == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_stats (ts, session_id, mean, min, max, count, trend)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nowUTC(),
		sessionID,
		stats.Mean,
		stats.Min,
		stats.Max,
		stats.Count,
		stats.Trend,
	)
	return err
}
