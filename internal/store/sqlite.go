package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/askzen/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	maxWriteRetries = 3
	retryBaseDelay  = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		first_seen_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		command TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL,
		reply TEXT NOT NULL,
		outcome TEXT NOT NULL,
		language TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON turns(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// withRetry runs op, retrying SQLITE_BUSY and "database is locked" errors
// with exponential backoff: 50ms, 100ms.
func withRetry(ctx context.Context, name string, op func() error) error {
	var err error
	for i := 0; i < maxWriteRetries; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !isConflict(err) || i == maxWriteRetries-1 {
			break
		}

		delay := retryBaseDelay * time.Duration(1<<i)
		slog.Debug("sqlite write conflicted, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, display_name, username, first_seen_at, last_seen_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var firstSeen, lastSeen int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.DisplayName, &user.Username, &firstSeen, &lastSeen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.FirstSeenAt = time.Unix(firstSeen, 0)
	user.LastSeenAt = time.Unix(lastSeen, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, display_name, username, first_seen_at, last_seen_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE users.display_name END,
		username = CASE WHEN excluded.username != '' THEN excluded.username ELSE users.username END,
		last_seen_at = MAX(users.last_seen_at, excluded.last_seen_at)`

	firstSeen := user.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = user.LastSeenAt
	}

	return withRetry(ctx, "upsert user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.DisplayName, user.Username,
			firstSeen.Unix(), user.LastSeenAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// InsertTurn appends one turn to the transcript.
func (s *SQLiteStore) InsertTurn(ctx context.Context, turn *domain.Turn) error {
	query := `
	INSERT INTO turns (id, user_id, command, input, reply, outcome, language, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return withRetry(ctx, "insert turn", func() error {
		_, err := s.db.ExecContext(ctx, query,
			turn.ID, turn.UserID, turn.Command, turn.Input, turn.Reply,
			string(turn.Outcome), string(turn.Language),
			turn.Duration.Milliseconds(), turn.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		return nil
	})
}

// ListTurns returns a user's most recent turns, newest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, userID string, limit int) ([]*domain.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT t.id, t.user_id, COALESCE(u.display_name, ''), COALESCE(u.username, ''),
		       t.command, t.input, t.reply, t.outcome, t.language, t.duration_ms, t.created_at
		FROM turns t LEFT JOIN users u ON u.user_id = t.user_id
		WHERE t.user_id = ?
		ORDER BY t.created_at DESC, t.rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	var turns []*domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var outcome, lang string
		var durationMS, createdAt int64
		if err := rows.Scan(
			&turn.ID, &turn.UserID, &turn.DisplayName, &turn.Username,
			&turn.Command, &turn.Input, &turn.Reply, &outcome, &lang, &durationMS, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Outcome = domain.Outcome(outcome)
		turn.Language = domain.Language(lang)
		turn.Duration = time.Duration(durationMS) * time.Millisecond
		turn.CreatedAt = time.UnixMilli(createdAt)
		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// Stats summarizes the transcript.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByOutcome: make(map[domain.Outcome]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.Users); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM turns GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close stats rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.ByOutcome[domain.Outcome(outcome)] = n
		stats.Turns += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// DeleteTurnsBefore removes turns created before cutoff.
func (s *SQLiteStore) DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withRetry(ctx, "delete turns", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
