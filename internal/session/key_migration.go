package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// MigrateLegacyKeys rewrites any 3-segment session key
// ("<channel>:<agent>:<chat-id>") to the current 4-segment format by
// inserting a placeholder user-id segment "0"
// ("<channel>:<agent>:0:<chat-id>"). placeholder renders a positional
// SQL parameter for the store's dialect (Postgres: "$1"; SQLite: "?").
// Idempotent: a key already in 4-segment form is left untouched.
func MigrateLegacyKeys(ctx context.Context, db *sql.DB, placeholder func(n int) string) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, key FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("list session keys: %w", err)
	}
	type rewrite struct{ id, newKey string }
	var pending []rewrite
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan session key: %w", err)
		}
		if rewritten, ok := rewriteLegacyKey(key); ok {
			pending = append(pending, rewrite{id: id, newKey: rewritten})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, r := range pending {
		query := fmt.Sprintf(`UPDATE sessions SET key = %s WHERE id = %s`, placeholder(1), placeholder(2))
		if _, err := db.ExecContext(ctx, query, r.newKey, r.id); err != nil {
			return 0, fmt.Errorf("rewrite key for session %s: %w", r.id, err)
		}
	}
	return len(pending), nil
}

func rewriteLegacyKey(key string) (string, bool) {
	segments := strings.Split(key, ":")
	if len(segments) != 3 {
		return "", false
	}
	return strings.Join([]string{segments[0], segments[1], "0", segments[2]}, ":"), true
}

// PostgresPlaceholder renders the $N positional parameter style.
func PostgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// SQLitePlaceholder renders the ? positional parameter style.
func SQLitePlaceholder(int) string { return "?" }
