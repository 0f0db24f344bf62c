package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteConfig struct {
	Path string `envconfig:"PATH" split_words:"true" default:"data/sessions.db"`
}

// SQLiteStore keeps session logs in a single SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig, historyLimit int) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between appends.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, limit: retention(historyLimit), now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS session_messages (
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, seq)
	);

	CREATE TABLE IF NOT EXISTS session_cursors (
		user_id TEXT PRIMARY KEY,
		cursor_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, msgs ...ChatMessage) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var last int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM session_messages WHERE user_id = ?`, userID)
	if err := row.Scan(&last); err != nil {
		return fmt.Errorf("read last sequence: %w", err)
	}

	stamped, err := stamp(msgs, last, s.now())
	if err != nil {
		return err
	}

	for _, m := range stamped {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_messages (user_id, seq, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			userID, m.Seq, string(m.Role), m.Text, m.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
	}

	newest := stamped[len(stamped)-1].Seq
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_messages WHERE user_id = ? AND seq <= ?`,
		userID, newest-int64(s.limit),
	); err != nil {
		return fmt.Errorf("evict chat messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, userID string) ([]ChatMessage, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, role, text, created_at FROM session_messages WHERE user_id = ? ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session log: %w", err)
	}
	defer rows.Close()

	out := make([]ChatMessage, 0, s.limit)
	for rows.Next() {
		var (
			m         ChatMessage
			role      string
			createdAt int64
		)
		if err := rows.Scan(&m.Seq, &role, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session log: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Cursor(ctx context.Context, userID string) (Cursor, error) {
	if err := checkUser(userID); err != nil {
		return Cursor{}, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT cursor_json FROM session_cursors WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		c := NewCursor(0)
		if err := s.SaveCursor(ctx, userID, c); err != nil {
			return Cursor{}, err
		}
		return c, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("query cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return c.normalized(), nil
}

func (s *SQLiteStore) SaveCursor(ctx context.Context, userID string, c Cursor) error {
	if err := checkUser(userID); err != nil {
		return err
	}

	payload, err := json.Marshal(c.normalized())
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_cursors (user_id, cursor_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET cursor_json = excluded.cursor_json, updated_at = excluded.updated_at`,
		userID, string(payload), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
