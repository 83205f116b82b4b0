package obs

import (
	"context"
	"log/slog"

	"github.com/forgewing/agentcore/pkg/models"
)

// CallLogger is the LLM call-log collaborator: the runtime fires one
// record per LLM call attempt and never persists it itself.
type CallLogger interface {
	LogCall(ctx context.Context, rec models.CallLogRecord)
}

// SlogCallLogger emits a structured slog record per call and
// increments the Prometheus counters tracked in Metrics, combining
// log/slog with an internal/observability.Metrics-style counter for
// the same event.
type SlogCallLogger struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewSlogCallLogger returns a CallLogger that logs to logger (or
// slog.Default() if nil) and records metrics into m (optional).
func NewSlogCallLogger(logger *slog.Logger, m *Metrics) *SlogCallLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogCallLogger{Logger: logger, Metrics: m}
}

func (l *SlogCallLogger) LogCall(ctx context.Context, rec models.CallLogRecord) {
	outcome := "success"
	if rec.Error != "" {
		outcome = "error"
	}
	l.Logger.LogAttrs(ctx, slog.LevelInfo, "llm call",
		slog.String("id", rec.ID),
		slog.String("session_key", rec.SessionKey),
		slog.String("model", rec.Model),
		slog.String("provider_attempt", rec.ProviderAttempt),
		slog.Bool("streaming", rec.Streaming),
		slog.Int("request_message_count", rec.RequestMessageCount),
		slog.Int("response_tool_call_count", rec.ResponseToolCalls),
		slog.Int64("prompt_tokens", rec.PromptTokens),
		slog.Int64("completion_tokens", rec.CompletionTokens),
		slog.Int64("total_tokens", rec.TotalTokens),
		slog.Int64("latency_ms", rec.LatencyMs),
		slog.String("error", rec.Error),
	)
	if l.Metrics != nil {
		l.Metrics.ProviderAttempts.WithLabelValues(rec.ProviderAttempt, outcome).Inc()
	}
}

// NoopCallLogger discards every record; used in tests where call-log
// side effects would only add noise.
type NoopCallLogger struct{}

func (NoopCallLogger) LogCall(context.Context, models.CallLogRecord) {}
