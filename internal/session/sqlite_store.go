package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/forgewing/agentcore/pkg/models"
)

const sqliteSchemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	key TEXT UNIQUE NOT NULL,
	agent TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL,
	user_id TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	total_tokens INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	reasoning_content TEXT NOT NULL DEFAULT '',
	tool_calls_json TEXT NOT NULL DEFAULT '',
	tool_call_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_id_idx ON messages(session_id, created_at);
`

// SQLiteStore implements Store against an embedded modernc.org/sqlite
// database, used in place of a hand-rolled in-memory map so that tests
// exercise the same SQL surface as PostgresStore.
// Pass ":memory:" for a process-local, non-persistent store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens path (or ":memory:") and applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := MigrateLegacyKeys(ctx, db, SQLitePlaceholder); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate legacy session keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, key, agent, model, channel, user_id, chat_id, created_at, updated_at, total_tokens)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.Key, sess.Agent, sess.Model, sess.Channel, sess.UserID, sess.ChatID,
		sess.CreatedAt, sess.UpdatedAt, sess.TotalTokens)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

func (s *SQLiteStore) GetSessionByKey(ctx context.Context, key string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE key = ?`, key))
}

func (s *SQLiteStore) scanSessionRow(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.Key, &sess.Agent, &sess.Model, &sess.Channel,
		&sess.UserID, &sess.ChatID, &sess.CreatedAt, &sess.UpdatedAt, &sess.TotalTokens)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if opts.Agent != "" {
		query += ` WHERE agent = ?`
		args = append(args, opts.Agent)
	}
	query += ` ORDER BY updated_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.Key, &sess.Agent, &sess.Model, &sess.Channel,
			&sess.UserID, &sess.ChatID, &sess.CreatedAt, &sess.UpdatedAt, &sess.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) FindLatest(ctx context.Context, keyPrefix string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE key LIKE ? ORDER BY updated_at DESC LIMIT 1`,
		keyPrefix+"%"))
}

func (s *SQLiteStore) PruneOlderThan(ctx context.Context, days int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < ?`, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&stats.SessionCount); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages`).Scan(&stats.MessageCount); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	toolCallsJSON, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		sessionID, msg.Role, msg.Content, msg.ReasoningContent, toolCallsJSON, msg.ToolCallID, msg.CreatedAt)
	return err
}

func (s *SQLiteStore) AppendRound(ctx context.Context, sessionID string, assistant *models.Message, toolReplies []*models.Message, addTokens int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	toolCallsJSON, err := marshalToolCalls(assistant.ToolCalls)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		sessionID, assistant.Role, assistant.Content, assistant.ReasoningContent, toolCallsJSON, assistant.ToolCallID, assistant.CreatedAt); err != nil {
		return err
	}
	for _, reply := range toolReplies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at)
			VALUES (?,?,?,'','',?,?)`,
			sessionID, reply.Role, reply.Content, reply.ToolCallID, reply.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET total_tokens = total_tokens + ?, updated_at = ? WHERE id = ?`,
		addTokens, time.Now(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		msg, toolCallsJSON, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		if err := unmarshalToolCalls(toolCallsJSON, msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
