package session

import (
	"context"
	"testing"
)

func TestRewriteLegacyKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"telegram:assistant:12345", "telegram:assistant:0:12345", true},
		{"telegram:assistant:0:12345", "", false},
		{"telegram", "", false},
	}
	for _, c := range cases {
		got, ok := rewriteLegacyKey(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("rewriteLegacyKey(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestMigrateLegacyKeysOnOpen(t *testing.T) {
	ctx := context.Background()

	store, err := NewSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.db.Close()

	if _, err := store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, key, agent, model, channel, user_id, chat_id, created_at, updated_at, total_tokens)
		VALUES ('legacy-1', 'telegram:assistant:999', 'assistant', '', 'telegram', '', '999', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 0)`); err != nil {
		t.Fatalf("insert legacy session: %v", err)
	}

	n, err := MigrateLegacyKeys(ctx, store.db, SQLitePlaceholder)
	if err != nil {
		t.Fatalf("MigrateLegacyKeys() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 key rewritten, got %d", n)
	}

	sess, err := store.GetSession(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess == nil {
		t.Fatal("expected session to still exist after migration")
	}
	if sess.Key != "telegram:assistant:0:999" {
		t.Errorf("Key = %q, want telegram:assistant:0:999", sess.Key)
	}

	n, err = MigrateLegacyKeys(ctx, store.db, SQLitePlaceholder)
	if err != nil {
		t.Fatalf("second MigrateLegacyKeys() error = %v", err)
	}
	if n != 0 {
		t.Errorf("expected migration to be idempotent, rewrote %d keys on second pass", n)
	}
}
