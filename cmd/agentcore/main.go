// Command agentcore is the CLI entry point for the agent execution
// core: it wires the LLM client, provider fallback chain, tool
// registry, sandbox policy, and session store into a Runtime and
// drives it through an interactive REPL against stdin/stdout (serve),
// with a stats subcommand for the session store, in the style of a
// cobra-based cmd/nexus entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgewing/agentcore/internal/llm"
	"github.com/forgewing/agentcore/internal/llm/native"
	"github.com/forgewing/agentcore/internal/obs"
	"github.com/forgewing/agentcore/internal/provider"
	"github.com/forgewing/agentcore/internal/runtime"
	"github.com/forgewing/agentcore/internal/sandbox"
	"github.com/forgewing/agentcore/internal/session"
	"github.com/forgewing/agentcore/internal/tools"
	"github.com/forgewing/agentcore/pkg/models"
)

var (
	version = "dev"

	dbPath        string
	workspaceRoot string
	modelLabel    string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcore",
		Short:   "Run the agent execution core",
		Version: version,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "agentcore.db", "sqlite database path for session storage")
	root.PersistentFlags().StringVar(&workspaceRoot, "workspace", ".", "workspace root exposed to tools")
	root.PersistentFlags().StringVar(&modelLabel, "model", "default", "model label recorded on sessions, traces and call logs")

	root.AddCommand(buildServeCmd())
	root.AddCommand(buildStatsCmd())
	return root
}

// buildRuntime wires every subsystem into a Runtime, following a
// service.New wiring sequence: store, then tools, then provider
// chain, then the loop itself.
func buildRuntime(ctx context.Context) (*runtime.Runtime, func(), error) {
	store, err := session.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}

	memStore, err := tools.NewMemoryStore(dbPath + ".memory")
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("open memory store: %w", err)
	}

	registry := tools.NewRegistry()
	if err := registerBuiltinTools(registry); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("register tools: %w", err)
	}

	chain := buildProviderChain()
	client := llm.NewClient()
	client.RegisterBackend(provider.BackendAnthropic, native.AnthropicBackend{})
	client.RegisterBackend(provider.BackendGoogle, native.GoogleBackend{})
	client.RegisterBackend(provider.BackendBedrock, native.BedrockBackend{})

	metrics := obs.NewProductionMetrics()
	callLogger := obs.NewSlogCallLogger(slog.Default(), metrics)
	tracer, shutdownTracer := obs.NewTracer("agentcore")

	promptBuilder := session.NewPromptBuilder(workspaceRoot, workspaceRoot+"/.skills")

	rt := &runtime.Runtime{
		Client:        client,
		Chain:         chain,
		Registry:      registry,
		Store:         store,
		Policy:        sandbox.DefaultPolicy(),
		PromptBuilder: promptBuilder,
		Memory:        memStore,
		Processes:     tools.NewProcessManager(),
		WorkspaceRoot: workspaceRoot,
		CallLogger:    callLogger,
		Tracer:        tracer,
		Metrics:       metrics,
		Chats:         runtime.NewChatRegistry(),
	}
	rt.DelegateRunner = &runtime.DelegateRunner{Parent: rt}

	cleanup := func() {
		promptBuilder.Close()
		_ = shutdownTracer(context.Background())
		store.Close()
	}
	return rt, cleanup, nil
}

func registerBuiltinTools(registry *tools.Registry) error {
	readTool, err := tools.NewReadTool(1 << 20)
	if err != nil {
		return err
	}
	writeTool, err := tools.NewWriteTool()
	if err != nil {
		return err
	}
	patchTool, err := tools.NewPatchTool()
	if err != nil {
		return err
	}
	findTool, err := tools.NewFindTool()
	if err != nil {
		return err
	}
	grepTool, err := tools.NewGrepTool()
	if err != nil {
		return err
	}
	listDirTool, err := tools.NewListDirTool()
	if err != nil {
		return err
	}
	execTool, err := tools.NewExecTool()
	if err != nil {
		return err
	}
	processTool, err := tools.NewProcessTool()
	if err != nil {
		return err
	}
	memoryTool, err := tools.NewMemoryTool()
	if err != nil {
		return err
	}
	webFetchTool, err := tools.NewWebFetchTool()
	if err != nil {
		return err
	}
	webSearchTool, err := tools.NewWebSearchTool()
	if err != nil {
		return err
	}
	delegateTool, err := tools.NewDelegateTool()
	if err != nil {
		return err
	}

	for _, t := range []tools.Tool{
		readTool, writeTool, patchTool, findTool, grepTool, listDirTool,
		execTool, processTool, memoryTool, webFetchTool, webSearchTool, delegateTool,
	} {
		registry.Register(t)
	}
	return nil
}

// buildProviderChain reads provider credentials from the environment,
// following the convention of one env var per provider API key; a
// deployment with no keys set still runs with an empty chain (every
// LLM call fails with AllProvidersFailed), which is a valid configuration for
// tool-only exercising of the runtime.
func buildProviderChain() *provider.Chain {
	var descriptors []provider.Descriptor
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		descriptors = append(descriptors, provider.Descriptor{
			Label: "openai", BaseURL: "https://api.openai.com/v1", APIKey: key,
			ModelID: "gpt-4o", Backend: provider.BackendOpenAICompat, SupportsStreaming: true,
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		descriptors = append(descriptors, provider.Descriptor{
			Label: "anthropic", APIKey: key, ModelID: "claude-sonnet-4-5",
			Backend: provider.BackendAnthropic, SupportsStreaming: true,
		})
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		descriptors = append(descriptors, provider.Descriptor{
			Label: "google", APIKey: key, ModelID: "gemini-2.5-pro",
			Backend: provider.BackendGoogle, SupportsStreaming: true,
		})
	}
	if os.Getenv("AWS_REGION") != "" {
		descriptors = append(descriptors, provider.Descriptor{
			Label: "bedrock", ModelID: "anthropic.claude-3-5-sonnet-20241022-v2:0",
			Backend: provider.BackendBedrock, SupportsStreaming: true,
		})
	}
	return provider.NewChain(descriptors...)
}

func buildServeCmd() *cobra.Command {
	var channel, agent, userID, chatID string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an interactive turn loop against stdin/stdout",
		Long: "serve reads one line of user input at a time from stdin and drives it through " +
			"a turn, printing streamed events to stdout. It stands in for a real chat-platform " +
			"adapter, which is out of scope for this module.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, cleanup, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprintln(os.Stderr, "agentcore ready; type a message and press enter")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := runOneLine(ctx, rt, channel, agent, userID, chatID, line); err != nil {
					fmt.Fprintln(os.Stderr, "turn error:", err)
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "cli", "channel name for the session key")
	cmd.Flags().StringVar(&agent, "agent", "default", "agent name for the session key")
	cmd.Flags().StringVar(&userID, "user", "local", "user id for the session key")
	cmd.Flags().StringVar(&chatID, "chat", "repl", "chat id for the session key")
	return cmd
}

func runOneLine(ctx context.Context, rt *runtime.Runtime, channel, agent, userID, chatID, input string) error {
	events, resultCh, err := rt.RunTurnStreaming(ctx, runtime.TurnRequest{
		Channel: channel, Agent: agent, UserID: userID, ChatID: chatID,
		Model: modelLabel, UserInput: input,
	})
	if err != nil {
		return err
	}

	for ev := range events {
		printEvent(ev)
	}
	result := <-resultCh
	fmt.Printf("\n[done reason=%s rounds=%d tools=%d tokens=%d]\n", result.DoneReason, result.RoundCount, result.ToolCallCount, result.TotalTokens)
	return nil
}

func printEvent(ev models.StreamEvent) {
	switch ev.Kind {
	case models.EventContentDelta:
		fmt.Print(ev.Text)
	case models.EventReasoningDelta:
		// reasoning is not shown on the primary reply stream
	case models.EventToolExec:
		fmt.Fprintf(os.Stderr, "\n[tool %s %s running]\n", ev.ToolName, ev.ToolCallID)
	case models.EventToolResult:
		fmt.Fprintf(os.Stderr, "[tool %s ok=%v]\n", ev.ToolCallID, ev.ToolOK)
	case models.EventError:
		fmt.Fprintf(os.Stderr, "\n[error %s: %s]\n", ev.ErrorKind, ev.Message)
	}
}

func buildStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print session store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewSQLiteStore(ctx, dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("sessions=%d messages=%d\n", stats.SessionCount, stats.MessageCount)
			return nil
		},
	}
}
