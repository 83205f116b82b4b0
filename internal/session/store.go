// Package session implements the session store and context assembler:
// relational persistence for sessions and their message history,
// newest-to-oldest pruning against a token budget, and the cached
// system-prompt builder, in the style of an internal/sessions package.
package session

import (
	"context"
	"strings"

	"github.com/forgewing/agentcore/pkg/models"
)

// Store is the persistence contract every session backend satisfies,
// in the style of internal/sessions.Store.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetSessionByKey(ctx context.Context, key string) (*models.Session, error)
	ListSessions(ctx context.Context, opts ListOptions) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	FindLatest(ctx context.Context, keyPrefix string) (*models.Session, error)
	PruneOlderThan(ctx context.Context, days int) (int, error)
	Stats(ctx context.Context) (Stats, error)

	// AppendRound persists the assistant message and its correlated
	// tool-role replies produced by one round in a single transaction,
	// along with the session's running token total.
	AppendRound(ctx context.Context, sessionID string, assistant *models.Message, toolReplies []*models.Message, addTokens int64) error

	// AppendMessage persists a single message outside the round
	// transaction, used for the initial user message of a turn.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error

	LoadMessages(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)

	Close() error
}

// ListOptions filters ListSessions.
type ListOptions struct {
	Agent  string
	Limit  int
	Offset int
}

// Stats summarizes store-wide counters for the stats() operation.
type Stats struct {
	SessionCount int64 `json:"session_count"`
	MessageCount int64 `json:"message_count"`
}

// SessionKey builds the 4-segment key:
// "<channel-prefix>:<agent>:<user-id>:<chat-id>".
func SessionKey(channel, agent, userID, chatID string) string {
	return strings.Join([]string{channel, agent, userID, chatID}, ":")
}
