package session

import (
	"context"
	"testing"
	"time"

	"github.com/forgewing/agentcore/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreCreateAndGetSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	sess := &models.Session{
		Key:       SessionKey("telegram", "assistant", "u1", "c1"),
		Agent:     "assistant",
		Model:     "gpt-4o",
		Channel:   "telegram",
		UserID:    "u1",
		ChatID:    "c1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected CreateSession to assign an ID")
	}

	byID, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if byID == nil || byID.Key != sess.Key {
		t.Fatalf("GetSession() = %+v, want key %q", byID, sess.Key)
	}

	byKey, err := store.GetSessionByKey(ctx, sess.Key)
	if err != nil {
		t.Fatalf("GetSessionByKey() error = %v", err)
	}
	if byKey == nil || byKey.ID != sess.ID {
		t.Fatalf("GetSessionByKey() = %+v, want ID %q", byKey, sess.ID)
	}

	missing, err := store.GetSession(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("GetSession(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("GetSession(missing) = %+v, want nil", missing)
	}
}

func TestSQLiteStoreAppendMessageAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess := &models.Session{
		Key:     SessionKey("telegram", "assistant", "u1", "c2"),
		Agent:   "assistant",
		Channel: "telegram",
		UserID:  "u1",
		ChatID:  "c2",
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	userMsg := &models.Message{Role: models.RoleUser, Content: "hello", CreatedAt: time.Now()}
	if err := store.AppendMessage(ctx, sess.ID, userMsg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	assistant := &models.Message{
		Role: models.RoleAssistant,
		ToolCalls: []models.ToolCallRequest{
			{ID: "call-1", Name: "read", Arguments: []byte(`{"path":"a"}`)},
		},
		CreatedAt: time.Now(),
	}
	toolReply := &models.Message{Role: models.RoleTool, Content: "file contents", ToolCallID: "call-1", CreatedAt: time.Now()}
	if err := store.AppendRound(ctx, sess.ID, assistant, []*models.Message{toolReply}, 42); err != nil {
		t.Fatalf("AppendRound() error = %v", err)
	}

	msgs, err := store.LoadMessages(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("LoadMessages() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("LoadMessages() returned %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("msgs[0] = %+v, want the user message first", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || len(msgs[1].ToolCalls) != 1 || msgs[1].ToolCalls[0].ID != "call-1" {
		t.Errorf("msgs[1] = %+v, want the assistant tool call round-tripped", msgs[1])
	}
	if msgs[2].Role != models.RoleTool || msgs[2].ToolCallID != "call-1" || msgs[2].Content != "file contents" {
		t.Errorf("msgs[2] = %+v, want the tool reply correlated by call id", msgs[2])
	}

	updated, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if updated.TotalTokens != 42 {
		t.Errorf("TotalTokens = %d, want 42", updated.TotalTokens)
	}
}

func TestSQLiteStoreLoadMessagesLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess := &models.Session{Key: SessionKey("telegram", "assistant", "u1", "c3"), Agent: "assistant", Channel: "telegram", UserID: "u1", ChatID: "c3"}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := store.AppendMessage(ctx, sess.ID, &models.Message{Role: models.RoleUser, Content: "m", CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	limited, err := store.LoadMessages(ctx, sess.ID, 2)
	if err != nil {
		t.Fatalf("LoadMessages(limit=2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("LoadMessages(limit=2) returned %d messages, want 2", len(limited))
	}

	all, err := store.LoadMessages(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("LoadMessages(limit=0) error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("LoadMessages(limit=0) returned %d messages, want 5", len(all))
	}
}

func TestSQLiteStoreListFindDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, chat := range []string{"c1", "c2", "c3"} {
		sess := &models.Session{
			Key:     SessionKey("telegram", "assistant", "u1", chat),
			Agent:   "assistant",
			Channel: "telegram",
			UserID:  "u1",
			ChatID:  chat,
		}
		if i == 2 {
			sess.Agent = "researcher"
			sess.Key = SessionKey("telegram", "researcher", "u1", chat)
		}
		if err := store.CreateSession(ctx, sess); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.ListSessions(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListSessions() returned %d sessions, want 3", len(all))
	}

	filtered, err := store.ListSessions(ctx, ListOptions{Agent: "researcher"})
	if err != nil {
		t.Fatalf("ListSessions(Agent=researcher) error = %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("ListSessions(Agent=researcher) returned %d sessions, want 1", len(filtered))
	}

	latest, err := store.FindLatest(ctx, "telegram:assistant:")
	if err != nil {
		t.Fatalf("FindLatest() error = %v", err)
	}
	if latest == nil || latest.Agent != "assistant" {
		t.Fatalf("FindLatest() = %+v, want an assistant session", latest)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.SessionCount != 3 {
		t.Errorf("Stats().SessionCount = %d, want 3", stats.SessionCount)
	}

	if err := store.DeleteSession(ctx, all[0].ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	remaining, err := store.ListSessions(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Errorf("ListSessions() after delete returned %d sessions, want 2", len(remaining))
	}
}

func TestSQLiteStoreDeleteSessionCascadesMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess := &models.Session{Key: SessionKey("telegram", "assistant", "u1", "cascade"), Agent: "assistant", Channel: "telegram", UserID: "u1", ChatID: "cascade"}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := store.AppendMessage(ctx, sess.ID, &models.Message{Role: models.RoleUser, Content: "m", CreatedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	var before int
	if err := store.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE session_id = ?`, sess.ID).Scan(&before); err != nil {
		t.Fatal(err)
	}
	if before != 3 {
		t.Fatalf("messages for session before delete = %d, want 3", before)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	var after int
	if err := store.db.QueryRowContext(ctx, `SELECT count(*) FROM messages WHERE session_id = ?`, sess.ID).Scan(&after); err != nil {
		t.Fatal(err)
	}
	if after != 0 {
		t.Errorf("messages for session after delete = %d, want 0 (ON DELETE CASCADE should remove them)", after)
	}
}

func TestSQLiteStorePruneOlderThan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := &models.Session{
		Key: SessionKey("telegram", "assistant", "u1", "old"), Agent: "assistant", Channel: "telegram", UserID: "u1", ChatID: "old",
		UpdatedAt: time.Now().AddDate(0, 0, -30),
	}
	if err := store.CreateSession(ctx, old); err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, old.UpdatedAt, old.ID); err != nil {
		t.Fatal(err)
	}

	recent := &models.Session{Key: SessionKey("telegram", "assistant", "u1", "new"), Agent: "assistant", Channel: "telegram", UserID: "u1", ChatID: "new", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := store.CreateSession(ctx, recent); err != nil {
		t.Fatal(err)
	}

	n, err := store.PruneOlderThan(ctx, 7)
	if err != nil {
		t.Fatalf("PruneOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("PruneOlderThan() pruned %d sessions, want 1", n)
	}

	remaining, err := store.ListSessions(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ChatID != "new" {
		t.Errorf("ListSessions() after prune = %+v, want only the recent session", remaining)
	}
}
