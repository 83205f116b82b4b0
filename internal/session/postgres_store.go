package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/forgewing/agentcore/pkg/models"
)

// schemaDDL creates the two-table relational layout. Run once at
// store construction; idempotent via IF NOT EXISTS.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	key TEXT UNIQUE NOT NULL,
	agent TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	channel TEXT NOT NULL,
	user_id TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	total_tokens BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	reasoning_content TEXT NOT NULL DEFAULT '',
	tool_calls_json TEXT NOT NULL DEFAULT '',
	tool_call_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session_id_idx ON messages(session_id, created_at);
`

// PostgresStore implements Store against CockroachDB/PostgreSQL,
// in the style of internal/sessions.CockroachStore.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig mirrors the prior connection-pool defaults.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}
}

// NewPostgresStore opens dsn, applies the schema, and returns a ready
// store.
func NewPostgresStore(ctx context.Context, dsn string, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := MigrateLegacyKeys(ctx, db, PostgresPlaceholder); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate legacy session keys: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, key, agent, model, channel, user_id, chat_id, created_at, updated_at, total_tokens)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		sess.ID, sess.Key, sess.Agent, sess.Model, sess.Channel, sess.UserID, sess.ChatID,
		sess.CreatedAt, sess.UpdatedAt, sess.TotalTokens)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx, sessionSelectByID, id))
}

func (s *PostgresStore) GetSessionByKey(ctx context.Context, key string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx, sessionSelectByKey, key))
}

const sessionColumns = `id, key, agent, model, channel, user_id, chat_id, created_at, updated_at, total_tokens`
const sessionSelectByID = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
const sessionSelectByKey = `SELECT ` + sessionColumns + ` FROM sessions WHERE key = $1`

func (s *PostgresStore) scanSessionRow(row *sql.Row) (*models.Session, error) {
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

func (s *PostgresStore) ListSessions(ctx context.Context, opts ListOptions) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if opts.Agent != "" {
		query += ` WHERE agent = $1`
		args = append(args, opts.Agent)
	}
	query += ` ORDER BY updated_at DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
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

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) FindLatest(ctx context.Context, keyPrefix string) (*models.Session, error) {
	return s.scanSessionRow(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE key LIKE $1 ORDER BY updated_at DESC LIMIT 1`,
		keyPrefix+"%"))
}

func (s *PostgresStore) PruneOlderThan(ctx context.Context, days int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < $1`, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&stats.SessionCount); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM messages`).Scan(&stats.MessageCount); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	toolCallsJSON, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sessionID, msg.Role, msg.Content, msg.ReasoningContent, toolCallsJSON, msg.ToolCallID, msg.CreatedAt)
	return err
}

// AppendRound persists the assistant message and its tool replies in
// one transaction, crash-durability requirement.
func (s *PostgresStore) AppendRound(ctx context.Context, sessionID string, assistant *models.Message, toolReplies []*models.Message, addTokens int64) error {
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
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sessionID, assistant.Role, assistant.Content, assistant.ReasoningContent, toolCallsJSON, assistant.ToolCallID, assistant.CreatedAt); err != nil {
		return err
	}
	for _, reply := range toolReplies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at)
			VALUES ($1,$2,$3,'','',$4,$5)`,
			sessionID, reply.Role, reply.Content, reply.ToolCallID, reply.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET total_tokens = total_tokens + $1, updated_at = $2 WHERE id = $3`,
		addTokens, time.Now(), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) LoadMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, reasoning_content, tool_calls_json, tool_call_id, created_at
		FROM messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageRow(rows rowScanner) (*models.Message, string, error) {
	var msg models.Message
	var toolCallsJSON string
	err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.ReasoningContent,
		&toolCallsJSON, &msg.ToolCallID, &msg.CreatedAt)
	return &msg, toolCallsJSON, err
}

func marshalToolCalls(calls []models.ToolCallRequest) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(calls)
	if err != nil {
		return "", fmt.Errorf("marshal tool calls: %w", err)
	}
	return string(raw), nil
}

func unmarshalToolCalls(raw string, msg *models.Message) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), &msg.ToolCalls)
}
