package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"postureguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/postureguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL,
			level TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			overall DOUBLE PRECISION NOT NULL,
			quality TEXT NOT NULL,
			user_triggered BOOLEAN NOT NULL,
			score_json JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_session_ts ON reminders(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS session_stats (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			session_id TEXT NOT NULL,
			mean DOUBLE PRECISION NOT NULL,
			min DOUBLE PRECISION NOT NULL,
			max DOUBLE PRECISION NOT NULL,
			count INTEGER NOT NULL,
			trend DOUBLE PRECISION NOT NULL
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

func (s *postgresStore) SaveReminder(ctx context.Context, event model.ReminderEvent) error {
	if s.db == nil || event.ID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, ts, session_id, level, type, message, overall, quality, user_triggered, score_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
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

func (s *postgresStore) SaveStats(ctx context.Context, sessionID string, stats model.SessionStats) error {
	if s.db == nil || sessionID == "" || stats.Count == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_stats (ts, session_id, mean, min, max, count, trend)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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
