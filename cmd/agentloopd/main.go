// Command agentloopd is the turn engine's CLI demo: it wires every
// SPEC_FULL.md component behind config-driven choices (LLM provider, state
// store, dedupe cache, reasoning engine) and drives one agent run to
// completion against a fixed goal and tool catalog. Grounded on the example
// pack's None9527-NGOClaw gateway CLI (gateway/cmd/cli/main.go): a cobra
// root command plus a small set of subcommands, config loaded once up
// front and overridden by flags.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/loopforge/agentturn/agent"
	"github.com/loopforge/agentturn/agent/comm"
	"github.com/loopforge/agentturn/agent/config"
	"github.com/loopforge/agentturn/agent/dedupe"
	"github.com/loopforge/agentturn/agent/dedupe/inmem"
	"github.com/loopforge/agentturn/agent/dedupe/rediscache"
	"github.com/loopforge/agentturn/agent/demotools"
	"github.com/loopforge/agentturn/agent/events"
	"github.com/loopforge/agentturn/agent/llm"
	"github.com/loopforge/agentturn/agent/llm/anthropicllm"
	"github.com/loopforge/agentturn/agent/llm/bedrockllm"
	"github.com/loopforge/agentturn/agent/llm/openaillm"
	"github.com/loopforge/agentturn/agent/loopdetect"
	"github.com/loopforge/agentturn/agent/orchestrator"
	"github.com/loopforge/agentturn/agent/prompt"
	"github.com/loopforge/agentturn/agent/reasoning"
	"github.com/loopforge/agentturn/agent/reasoning/cot"
	"github.com/loopforge/agentturn/agent/reasoning/selector"
	"github.com/loopforge/agentturn/agent/reasoning/tot"
	"github.com/loopforge/agentturn/agent/schema"
	"github.com/loopforge/agentturn/agent/store/filestore"
	"github.com/loopforge/agentturn/agent/telemetry"
	"github.com/loopforge/agentturn/agent/tool"
)

const cliName = "agentloopd"

func main() {
	var configPath, redisAddr, goal string

	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "agentloopd — stateful Reason/Act agent loop demo",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "redis address for the dedupe cache (empty uses an in-process cache)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one agent to completion against the demo tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), configPath, redisAddr, goal)
		},
	}
	runCmd.Flags().StringVar(&goal, "goal", "Say hello and report the current time.", "the agent's goal for this run")
	rootCmd.AddCommand(runCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cliName + " v0.1.0")
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, configPath, redisAddr, goal string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewClueLogger()

	st, err := filestore.New(cfg.StateDir, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	registry := tool.NewMapRegistry()
	registry.Register(demotools.Clock{})
	registry.Register(demotools.Echo{})

	introspector := schema.NewIntrospector()
	for _, d := range registry.All() {
		if raw := d.ParamsSchema(); raw != nil {
			if err := introspector.Register(d.Name(), raw); err != nil {
				return fmt.Errorf("register schema for %s: %w", d.Name(), err)
			}
		}
	}

	exec := tool.NewExecutor(registry, introspector, cfg.ToolTimeout)

	dedupeCache, err := buildDedupeCache(ctx, redisAddr)
	if err != nil {
		return err
	}
	deduper := dedupe.New(dedupeCache, cfg.DedupeStalenessThreshold)

	ld := loopdetect.New(cfg.MaxToolCallHistory, 30*time.Minute, cfg.ConsecutiveFailureThreshold)

	adapter, err := buildAdapter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build llm adapter: %w", err)
	}

	bus := events.NewBus()
	bus.Register(events.SubscriberFunc(func(ctx context.Context, evt events.Event) error {
		fmt.Printf("[%s] %s\n", evt.Kind(), evt.AgentID())
		return nil
	}))

	communicator := comm.New(adapter, bus, logger, cfg.LLMTimeout)

	builder := prompt.New(registry, prompt.Options{
		EmitPublicStatus:           cfg.EmitPublicStatus,
		UseCentralizedSchemas:      cfg.UseCentralizedSchemas,
		MaxRecentTurns:             cfg.MaxRecentTurns,
		EnableHistorySummarization: cfg.EnableHistorySummarization,
		MaxToolOutputSize:          cfg.MaxToolOutputSize,
	})

	agentID := agent.ID(uuid.NewString())
	reasoner := buildReasoner(cfg, adapter, bus, logger, string(agentID))

	orch := orchestrator.New(st, registry, exec, deduper, ld, communicator, builder, bus, logger, orchestrator.Config{
		MaxTurns:                 cfg.MaxTurns,
		UseFunctionCalling:       cfg.UseFunctionCalling,
		DedupeStalenessThreshold: cfg.DedupeStalenessThreshold,
	})
	orch.Reasoner = reasoner

	result, err := orch.Run(ctx, agentID, goal, orchestrator.RunOptions{})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("\nrun %s: succeeded=%v turns=%d\n", result.RunID, result.Succeeded, result.TotalTurns)
	if result.Succeeded {
		fmt.Println(result.FinalOutput)
	} else if result.Err != nil {
		fmt.Println("error:", result.Err, "kind:", result.ErrorKind)
	}
	return nil
}

func buildDedupeCache(ctx context.Context, redisAddr string) (dedupe.Cache, error) {
	if redisAddr == "" {
		return inmem.New(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %q: %w", redisAddr, err)
	}
	return rediscache.New(client, "agentloopd:dedupe:"), nil
}

func buildReasoner(cfg config.Config, adapter llm.Adapter, bus events.Bus, logger telemetry.Logger, agentID string) orchestrator.Reasoner {
	if cfg.ReasoningType == "" || cfg.ReasoningType == "none" {
		return nil
	}
	p := reasoning.NewLLMPrompter(adapter, bus, logger, cfg.LLMTimeout, agentID)

	cotEngine := cot.New(p, cot.Config{
		MaxSteps:         cfg.MaxReasoningSteps,
		EnableValidation: cfg.EnableReasoningValidation,
		MinConfidence:    cfg.MinReasoningConfidence,
	})
	totEngine := tot.New(p, tot.Config{
		MaxDepth: cfg.MaxTreeDepth,
		MaxNodes: cfg.MaxTreeNodes,
		Strategy: agent.ExplorationStrategy(cfg.TreeExplorationStrategy),
	})
	return selector.New(selector.Type(cfg.ReasoningType), cotEngine, totEngine)
}

func buildAdapter(ctx context.Context, cfg config.Config) (llm.Adapter, error) {
	switch cfg.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		return openaillm.New(apiKey, cfg.Model), nil
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return bedrockllm.New(client, cfg.Model), nil
	case "anthropic", "":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		return anthropicllm.New(apiKey, cfg.Model, 4096), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
