package session

import (
	"context"
	"fmt"

	"github.com/forgewing/agentcore/pkg/models"
)

// DefaultTokenBudget is the default pruning budget used when a
// caller does not override it.
const DefaultTokenBudget = 12000

// charsPerToken is the estimator's fixed ratio.
const charsPerToken = 4

// LoadForLLM assembles the message list for one LLM round: the system
// message, followed by a suffix of persisted history selected by
// Prune. The caller must have already appended the
// new user message to the session via AppendMessage before calling
// this.
func LoadForLLM(ctx context.Context, store Store, sessionID, systemPrompt string, tokenBudget int) ([]*models.Message, error) {
	history, err := store.LoadMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return Prune(systemPrompt, history, tokenBudget), nil
}

// Prune walks history newest→oldest, estimating ~4 characters per
// token, accumulating whole messages until tokenBudget would be
// exceeded. It never truncates inside a message, and it always
// retains the system message and the last user-role message in
// history, regardless of budget. The floor is tracked by role
// identity rather than position: a multi-round tool-calling turn
// appends assistant and tool messages after the triggering user
// message, so by the time a later round calls this, the positionally
// newest message is a tool reply, not the user's question.
func Prune(systemPrompt string, history []*models.Message, tokenBudget int) []*models.Message {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	sysMsg := &models.Message{Role: models.RoleSystem, Content: systemPrompt}
	budget := tokenBudget - estimateTokens(systemPrompt)

	if len(history) == 0 {
		return []*models.Message{sysMsg}
	}

	floorIdx := len(history) - 1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleUser {
			floorIdx = i
			break
		}
	}
	budget -= estimateMessageTokens(history[floorIdx])

	// Walk the rest newest→oldest, skipping the floor message (already
	// reserved above), keeping whichever fit.
	kept := make([]bool, len(history))
	kept[floorIdx] = true
	for i := len(history) - 1; i >= 0; i-- {
		if i == floorIdx {
			continue
		}
		cost := estimateMessageTokens(history[i])
		if budget-cost < 0 {
			break
		}
		budget -= cost
		kept[i] = true
	}

	out := make([]*models.Message, 0, len(history)+1)
	out = append(out, sysMsg)
	for i, keep := range kept {
		if keep {
			out = append(out, history[i])
		}
	}
	return out
}

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

func estimateMessageTokens(msg *models.Message) int {
	total := estimateTokens(msg.Content) + estimateTokens(msg.ReasoningContent)
	for _, call := range msg.ToolCalls {
		total += estimateTokens(call.Name) + estimateTokens(string(call.Arguments))
	}
	return total
}
