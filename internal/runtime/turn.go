// Package runtime implements the agent turn runtime: the bounded
// round loop that assembles the prompt, drives the LLM client through
// the provider fallback chain, dispatches tool calls concurrently,
// persists every message, and streams typed events to the caller. In
// the style of an internal/agent.AgenticLoop (goroutine-driven event
// channel, one phase per round) generalized to this package's
// session/llm/tools seams.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgewing/agentcore/internal/cancel"
	"github.com/forgewing/agentcore/internal/errs"
	"github.com/forgewing/agentcore/internal/llm"
	"github.com/forgewing/agentcore/internal/obs"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/internal/sandbox"
	"github.com/forgewing/agentcore/internal/session"
	"github.com/forgewing/agentcore/internal/tools"
	"github.com/forgewing/agentcore/pkg/models"
)

// RoundBudget is the default per-turn round bound.
const RoundBudget = 20

// TurnDeadline is the default per-turn wall-clock deadline.
const TurnDeadline = 120 * time.Second

// eventBufferSize approximates an "unbounded" turn event channel with
// a generous buffer, in the style of a processBufferSize convention
// (internal/agent.Run); a channel cannot be literally unbounded in Go
// without an internal growable queue, so callers are still expected
// to drain promptly.
const eventBufferSize = 256

// Runtime wires the four subsystems together to perform turns.
type Runtime struct {
	Client        *llm.Client
	Chain         *provider.Chain
	Registry      *tools.Registry
	Store         session.Store
	Policy        sandbox.Policy
	PromptBuilder *session.PromptBuilder
	Memory        *tools.MemoryStore
	Processes     *tools.ProcessManager
	WorkspaceRoot string

	// DelegateRunner serves the delegate tool's sub-agent turns,
	// satisfying internal/tools.Runner. Left nil, a call to the
	// delegate tool fails as a ToolExec error.
	DelegateRunner tools.Runner

	CallLogger obs.CallLogger
	Tracer     *obs.Tracer
	Metrics    *obs.Metrics
	Logger     *slog.Logger

	Chats *ChatRegistry

	// TokenBudget and RoundBudget override the defaults;
	// zero means use the package default.
	TokenBudget  int
	RoundBudget  int
	TurnDeadline time.Duration
}

// TurnRequest identifies the session a turn belongs to and the
// message that starts it.
type TurnRequest struct {
	Channel   string
	Agent     string
	UserID    string
	ChatID    string
	Model     string
	UserInput string
}

func (rt *Runtime) tokenBudget() int {
	if rt.TokenBudget > 0 {
		return rt.TokenBudget
	}
	return session.DefaultTokenBudget
}

func (rt *Runtime) roundBudget() int {
	if rt.RoundBudget > 0 {
		return rt.RoundBudget
	}
	return RoundBudget
}

func (rt *Runtime) turnDeadline() time.Duration {
	if rt.TurnDeadline > 0 {
		return rt.TurnDeadline
	}
	return TurnDeadline
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.Logger != nil {
		return rt.Logger
	}
	return slog.Default()
}

func (rt *Runtime) callLogger() obs.CallLogger {
	if rt.CallLogger != nil {
		return rt.CallLogger
	}
	return obs.NoopCallLogger{}
}

// RunTurnStreaming starts the turn in a background goroutine,
// cancelling and draining any turn already in flight for the same
// chat key first (the auto-cancellation registry), and returns the
// event channel immediately along with a result channel that
// receives exactly one AgentTurnResult once the turn ends.
func (rt *Runtime) RunTurnStreaming(ctx context.Context, req TurnRequest) (<-chan models.StreamEvent, <-chan *models.AgentTurnResult, error) {
	if rt.Store == nil {
		return nil, nil, errs.New(errs.SessionStore, "no session store configured")
	}
	if rt.Chats == nil {
		rt.Chats = NewChatRegistry()
	}

	chatKey := req.Channel + ":" + req.ChatID
	sessionKey := session.SessionKey(req.Channel, req.Agent, req.UserID, req.ChatID)

	sess, err := rt.Store.GetSessionByKey(ctx, sessionKey)
	if err != nil {
		return nil, nil, errs.Wrap(errs.SessionStore, "load session", err)
	}
	if sess == nil {
		now := time.Now()
		sess = &models.Session{
			Key: sessionKey, Agent: req.Agent, Model: req.Model,
			Channel: req.Channel, UserID: req.UserID, ChatID: req.ChatID,
			CreatedAt: now, UpdatedAt: now,
		}
		if err := rt.Store.CreateSession(ctx, sess); err != nil {
			return nil, nil, errs.Wrap(errs.SessionStore, "create session", err)
		}
	}

	if err := rt.Store.AppendMessage(ctx, sess.ID, &models.Message{
		SessionID: sess.ID, Role: models.RoleUser, Content: req.UserInput, CreatedAt: time.Now(),
	}); err != nil {
		return nil, nil, errs.Wrap(errs.SessionStore, "append user message", err)
	}

	token, release := rt.Chats.Start(ctx, chatKey)
	deadlineToken, cancelDeadline := cancel.WithTimeout(token, rt.turnDeadline())

	events := make(chan models.StreamEvent, eventBufferSize)
	resultCh := make(chan *models.AgentTurnResult, 1)

	go func() {
		defer close(events)
		defer close(resultCh)
		defer cancelDeadline()
		defer release()

		result := rt.runTurn(deadlineToken.Context(), deadlineToken, sess, req, events)
		resultCh <- result
	}()

	return events, resultCh, nil
}

// RunTurn implements the synchronous run_turn operation by draining
// RunTurnStreaming's event channel and returning its final result.
func (rt *Runtime) RunTurn(ctx context.Context, req TurnRequest) (*models.AgentTurnResult, error) {
	events, resultCh, err := rt.RunTurnStreaming(ctx, req)
	if err != nil {
		return nil, err
	}
	for range events {
	}
	return <-resultCh, nil
}

func (rt *Runtime) runTurn(ctx context.Context, token *cancel.Token, sess *models.Session, req TurnRequest, events chan<- models.StreamEvent) *models.AgentTurnResult {
	start := time.Now()

	var span trace.Span
	if rt.Tracer != nil {
		var spanCtx context.Context
		spanCtx, span = rt.Tracer.StartTurn(ctx, sess.Key, req.Model)
		ctx = spanCtx
	}

	systemPrompt := ""
	if rt.PromptBuilder != nil {
		built, err := rt.PromptBuilder.Build(toolInfosFrom(rt.Registry))
		if err != nil {
			rt.logger().Error("build system prompt", "error", err)
		} else {
			systemPrompt = built
		}
	}

	result := &models.AgentTurnResult{FinalModelLabel: req.Model}

	roundCount := 0
	reason := "stop"

	// round_count is only known once the round loop finishes, so it is
	// set on the span here rather than at StartTurn; the closure reads
	// roundCount's final value at defer time, not at registration time.
	if span != nil {
		defer func() {
			span.SetAttributes(attribute.Int("round_count", roundCount))
			span.End()
		}()
	}

	// runOneRound executes a single round and reports whether the
	// round loop should stop, and why. It is a closure (rather than
	// inline loop body) so its deferred round-span End() fires at the
	// end of the round rather than piling up until the whole turn
	// returns.
	runOneRound := func(round int) (stop bool, stopReason string) {
		roundCtx := ctx
		var roundSpan trace.Span
		if rt.Tracer != nil {
			roundCtx, roundSpan = rt.Tracer.StartRound(ctx, round)
			defer roundSpan.End()
		}

		history, err := session.LoadForLLM(roundCtx, rt.Store, sess.ID, systemPrompt, rt.tokenBudget())
		if err != nil {
			events <- models.ErrorEvent(string(errs.SessionStore), err.Error())
			return true, "error"
		}

		llmMessages := derefMessages(history)
		toolSchemas := rt.Registry.AsSchemas()

		streamEvents, chainResult, err := rt.Client.StreamChain(roundCtx, rt.Chain, llmMessages, toolSchemas, llm.Options{IncludeUsage: true})
		callID := uuid.NewString()
		callStart := time.Now()
		if err != nil {
			rt.callLogger().LogCall(roundCtx, models.CallLogRecord{
				ID: callID, SessionKey: sess.Key, Model: req.Model, Streaming: true,
				RequestMessageCount: len(llmMessages), Error: err.Error(),
				LatencyMs: time.Since(callStart).Milliseconds(), CreatedAt: time.Now(),
			})
			events <- models.ErrorEvent(string(errs.AllProvidersFailed), err.Error())
			return true, "error"
		}
		result.FinalModelLabel = chainResult.Label

		assistantMsg, usage, cancelled, streamErr := rt.drainRound(roundCtx, streamEvents, events)
		assistantMsg.SessionID = sess.ID

		rt.callLogger().LogCall(roundCtx, models.CallLogRecord{
			ID: callID, SessionKey: sess.Key, Model: req.Model, ProviderAttempt: chainResult.Label,
			Streaming: true, RequestMessageCount: len(llmMessages), ResponseContent: assistantMsg.Content,
			ResponseToolCalls: len(assistantMsg.ToolCalls), PromptTokens: usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens, TotalTokens: usage.TotalTokens,
			LatencyMs: time.Since(callStart).Milliseconds(), CreatedAt: time.Now(),
		})

		result.PromptTokens += usage.PromptTokens
		result.CompletionTokens += usage.CompletionTokens
		result.TotalTokens += usage.TotalTokens

		if cancelled {
			// Persist whatever partial assistant text the round produced
			// so the cancelled exchange is still recoverable. Uses a
			// fresh context since ctx itself is already done.
			if assistantMsg.Content != "" || assistantMsg.ReasoningContent != "" {
				_ = rt.Store.AppendMessage(context.Background(), sess.ID, assistantMsg)
			}
			return true, reasonFor(ctx)
		}

		if streamErr {
			// A malformed-stream failure already charged the provider's
			// circuit via markOutcomeOnStream; the round cannot be
			// completed normally since the assistant message may be
			// truncated mid-token, so the turn ends rather than
			// persisting it as a genuine reply.
			return true, "error"
		}

		if len(assistantMsg.ToolCalls) == 0 {
			if err := rt.Store.AppendRound(roundCtx, sess.ID, assistantMsg, nil, usage.TotalTokens); err != nil {
				events <- models.ErrorEvent(string(errs.SessionStore), err.Error())
				return true, "error"
			}
			result.ReplyText = assistantMsg.Content
			return true, "stop"
		}

		result.ToolCallCount += len(assistantMsg.ToolCalls)
		toolReplies := rt.dispatchTools(roundCtx, token, sess, assistantMsg.ToolCalls, events)
		if err := rt.Store.AppendRound(roundCtx, sess.ID, assistantMsg, toolReplies, usage.TotalTokens); err != nil {
			events <- models.ErrorEvent(string(errs.SessionStore), err.Error())
			return true, "error"
		}
		return false, ""
	}

roundLoop:
	for round := 1; round <= rt.roundBudget(); round++ {
		select {
		case <-ctx.Done():
			reason = reasonFor(ctx)
			break roundLoop
		default:
		}

		roundCount = round
		events <- models.RoundStartEvent(round)

		stop, stopReason := runOneRound(round)
		if stop {
			reason = stopReason
			break roundLoop
		}
	}

	if roundCount >= rt.roundBudget() && reason == "stop" && result.ReplyText == "" {
		reason = "round_limit"
	}

	result.RoundCount = roundCount
	result.DoneReason = reason
	result.LatencyMs = time.Since(start).Milliseconds()

	if reason == "stop" || reason == "round_limit" {
		events <- models.UsageEvent(result.PromptTokens, result.CompletionTokens, result.TotalTokens)
	}
	events <- models.DoneEvent(reason)

	if rt.Metrics != nil {
		rt.Metrics.TurnsTotal.WithLabelValues(reason).Inc()
		rt.Metrics.RoundsPerTurn.Observe(float64(roundCount))
		rt.Metrics.TurnLatency.Observe(time.Since(start).Seconds())
	}

	return result
}

// roundUsage carries one round's token counts.
type roundUsage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// drainRound relays content/reasoning/tool-call deltas from
// streamEvents to events, feeding tool-call fragments to an
// accumulator, until the backend closes its channel or ctx is
// cancelled. A round's Usage event is consumed but not relayed: the
// turn emits one aggregate Usage event summed across every round when
// it exits the round loop, rather than one per round. It returns the
// assembled assistant message, the round's usage, whether the drain
// was cut short by cancellation, and whether the backend reported a
// mid-stream parse failure (EventError) — a ProviderFatal condition
// the caller must not mistake for a normal completed round.
func (rt *Runtime) drainRound(ctx context.Context, streamEvents <-chan models.StreamEvent, events chan<- models.StreamEvent) (*models.Message, roundUsage, bool, bool) {
	acc := llm.NewToolCallAccumulator()
	var content, reasoning strings.Builder
	var usage roundUsage
	streamErr := false

	for {
		select {
		case <-ctx.Done():
			return &models.Message{
				Role: models.RoleAssistant, Content: content.String(),
				ReasoningContent: reasoning.String(), ToolCalls: acc.Finalize(),
				CreatedAt: time.Now(),
			}, usage, true, streamErr
		case ev, ok := <-streamEvents:
			if !ok {
				return &models.Message{
					Role: models.RoleAssistant, Content: content.String(),
					ReasoningContent: reasoning.String(), ToolCalls: acc.Finalize(),
					CreatedAt: time.Now(),
				}, usage, false, streamErr
			}
			switch ev.Kind {
			case models.EventContentDelta:
				content.WriteString(ev.Text)
				events <- ev
			case models.EventReasoningDelta:
				reasoning.WriteString(ev.Text)
				events <- ev
			case models.EventToolCallPartial:
				acc.Feed(ev)
				events <- ev
			case models.EventUsage:
				usage = roundUsage{PromptTokens: ev.PromptTokens, CompletionTokens: ev.CompletionTokens, TotalTokens: ev.TotalTokens}
			case models.EventError:
				streamErr = true
				events <- ev
			}
		}
	}
}

// dispatchTools executes every call concurrently, emitting ToolExec
// before and ToolResult after each, and returns the resulting
// tool-role messages in call-id order regardless of completion order,
// in the style of a ToolExecutor.ExecuteConcurrently (index-addressed
// results slice plus a WaitGroup).
func (rt *Runtime) dispatchTools(ctx context.Context, token *cancel.Token, sess *models.Session, calls []models.ToolCallRequest, events chan<- models.StreamEvent) []*models.Message {
	results := make([]*models.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call models.ToolCallRequest) {
			defer wg.Done()

			events <- models.ToolExecEvent(call.ID, call.Name)

			var toolSpan trace.Span
			toolCtx := ctx
			if rt.Tracer != nil {
				toolCtx, toolSpan = rt.Tracer.StartToolDispatch(ctx, call.Name, call.ID)
			}

			ok, output := rt.invokeTool(toolCtx, token, sess, call)
			output = TruncateToolOutput(output)

			if toolSpan != nil {
				toolSpan.End()
			}

			events <- models.ToolResultEvent(call.ID, ok, output)
			if rt.Metrics != nil {
				outcome := "success"
				if !ok {
					outcome = "error"
				}
				rt.Metrics.ToolCallsTotal.WithLabelValues(call.Name, outcome).Inc()
			}

			results[idx] = &models.Message{
				SessionID: sess.ID, Role: models.RoleTool, Content: output,
				ToolCallID: call.ID, CreatedAt: time.Now(),
			}
		}(i, call)
	}
	wg.Wait()
	// Stamp every reply with one shared time so the store's
	// (created_at, id) ordering falls back to insertion order, which is
	// call order, instead of completion order.
	now := time.Now()
	for _, m := range results {
		m.CreatedAt = now
	}
	return results
}

func (rt *Runtime) invokeTool(ctx context.Context, token *cancel.Token, sess *models.Session, call models.ToolCallRequest) (bool, string) {
	tool, ok := rt.Registry.Get(call.Name)
	if !ok {
		return false, fmt.Sprintf("unknown tool %q", call.Name)
	}
	tc := &tools.Context{
		Policy:        rt.Policy,
		SessionKey:    sess.Key,
		WorkspaceRoot: rt.WorkspaceRoot,
		Cancel:        token,
		Runner:        rt.DelegateRunner,
		Memory:        rt.Memory,
		Processes:     rt.Processes,
	}
	result := tool.Invoke(ctx, call.Arguments, tc)
	return result.Ok, result.Output
}

func reasonFor(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	return "cancelled"
}

func derefMessages(in []*models.Message) []models.Message {
	out := make([]models.Message, len(in))
	for i, m := range in {
		out[i] = *m
	}
	return out
}

func toolInfosFrom(reg *tools.Registry) []session.ToolInfo {
	if reg == nil {
		return nil
	}
	schemas := reg.AsSchemas()
	out := make([]session.ToolInfo, len(schemas))
	for i, s := range schemas {
		out[i] = session.ToolInfo{Name: s.Name, Description: s.Description}
	}
	return out
}
