package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/nextlevelbuilder/forgecode/internal/agentcore"
	"github.com/nextlevelbuilder/forgecode/internal/bus"
	"github.com/nextlevelbuilder/forgecode/internal/config"
	"github.com/nextlevelbuilder/forgecode/internal/coordinator"
	"github.com/nextlevelbuilder/forgecode/internal/looper"
	"github.com/nextlevelbuilder/forgecode/internal/message"
	"github.com/nextlevelbuilder/forgecode/internal/providers"
	"github.com/nextlevelbuilder/forgecode/internal/store"
	"github.com/nextlevelbuilder/forgecode/internal/store/filestore"
	"github.com/nextlevelbuilder/forgecode/internal/tools"
)

// system holds every collaborator runServer/runCLI needs, wired once
// from a loaded config — the narrow-interface composition spec.md §9
// describes, generalized from the teacher's single cmd/gateway.go
// runGateway wiring sequence.
type system struct {
	cfg     *config.Config
	router  *bus.Router
	events  *bus.EventBus
	coord   *coordinator.Coordinator
	loops   *looper.Manager
	stores  *filestore.Store
	project *message.ProjectContext
	llm     *providers.Client
}

// llmClientModels exposes the wired Client's available_models(),
// per spec.md §4.2, for the `models` subcommand.
func (s *system) llmClientModels() map[providers.Name][]providers.ModelFamily {
	return s.llm.AvailableModels()
}

func buildSystem(cfg *config.Config) (*system, error) {
	workspace := expandHome(cfg.Project.Path)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create project workspace: %w", err)
	}

	router := bus.NewRouter(cfg.Loop.RouterCapacity)
	events := bus.NewEventBus()
	project := message.NewProjectContext(cfg.Project.DefaultName, workspace)

	llm, err := buildProviderClient(cfg)
	if err != nil {
		return nil, err
	}

	toolReg := tools.NewRegistry()
	fsTools := tools.NewFilesystemTools(workspace)
	if err := fsTools.RegisterAll(toolReg); err != nil {
		return nil, fmt.Errorf("register filesystem tools: %w", err)
	}
	shellLimiter := rate.NewLimiter(rate.Limit(2), 4)
	if err := tools.NewShellTool(workspace, shellLimiter, 2*time.Minute).Register(toolReg); err != nil {
		return nil, fmt.Errorf("register shell tool: %w", err)
	}

	supervisor := agentcore.New(agentcore.Config{
		ID:           message.AgentSupervisor,
		SystemPrompt: "You are the supervisor. Break the user's request into tasks and delegate to code_editing or react using DELEGATE_TO/TASK/INSTRUCTIONS markers. Never edit files yourself.",
		IsSupervisor: true,
		ToolsEnabled: false,
		InboxSize:    cfg.Loop.InboxCapacity,
		Outbox:       router,
		Project:      project,
		LLM:          llm,
		Tools:        toolReg,
		Events:       events,
	})
	codeEditing := agentcore.New(agentcore.Config{
		ID:           message.AgentCodeEditing,
		SystemPrompt: "You are the code_editing agent. Use read_file/write_file/list_directory/create_directory/execute_command to carry out the instructions you were delegated.",
		ToolsEnabled: true,
		InboxSize:    cfg.Loop.InboxCapacity,
		Outbox:       router,
		Project:      project,
		LLM:          llm,
		Tools:        toolReg,
		Events:       events,
	})
	react := agentcore.New(agentcore.Config{
		ID:           message.AgentReact,
		SystemPrompt: "You are the react agent. Reason step by step and use tools to answer questions about the project without editing files unless explicitly instructed.",
		ToolsEnabled: true,
		InboxSize:    cfg.Loop.InboxCapacity,
		Outbox:       router,
		Project:      project,
		LLM:          llm,
		Tools:        toolReg,
		Events:       events,
	})

	coord := coordinator.New(router, []*agentcore.Agent{supervisor, codeEditing, react}, project, llm)
	loops := looper.NewManager(coord)

	st, err := filestore.New(filepath.Join(workspace, ".forgecode", "store"))
	if err != nil {
		return nil, fmt.Errorf("create filestore: %w", err)
	}

	return &system{cfg: cfg, router: router, events: events, coord: coord, loops: loops, stores: st, project: project, llm: llm}, nil
}

// loopConfig converts cfg.Loop into looper.Config.
func (s *system) loopConfig() looper.Config {
	return looper.Config{
		Deadline:          s.cfg.Loop.LoopTimeout,
		MonitorCadence:    s.cfg.Loop.MonitorPeriod,
		IdleThreshold:     s.cfg.Loop.IdleThreshold,
		IdleTicksRequired: s.cfg.Loop.IdleTicksRequired,
	}
}

// saveTurn persists one completed turn's project snapshot, satisfying
// the out-of-scope persistence collaborators spec.md §6.2 names
// through their narrow interfaces only.
func (s *system) saveTurn() {
	snap := s.project.Snapshot()
	_ = s.stores.SaveProject(store.ProjectRecord{
		Name:           snap.Name,
		Path:           snap.Path,
		Phase:          snap.Phase,
		ActiveTasks:    snap.ActiveTasks,
		CompletedTasks: snap.CompletedTasks,
		UpdatedAt:      time.Now().UTC(),
	})
}

func buildProviderClient(cfg *config.Config) (*providers.Client, error) {
	set := make(map[providers.Name]providers.Provider)

	if cfg.Providers.Anthropic.APIKey != "" {
		set[providers.NameAnthropicDirect] = providers.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, "claude-sonnet-4-5-20250929")
	}
	if cfg.Providers.Gemini.APIKey != "" {
		set[providers.NameGoogleGemini] = providers.NewGeminiProvider(cfg.Providers.Gemini.APIKey, "gemini-2.5-pro")
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		set[providers.NameOpenRouterAggregator] = providers.NewOpenRouterProvider(cfg.Providers.OpenRouter.APIKey, "openrouter/auto", "https://forgecode.local", "forgecode")
	}
	if cfg.Providers.SelfHosted.Endpoint != "" {
		set[providers.NameLocal] = providers.NewLocalProvider(cfg.Providers.SelfHosted.Endpoint, "", "local-model")
	}
	if cfg.Providers.AWS.Region != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Providers.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		set[providers.NameAWSManaged] = providers.NewBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), "anthropic.claude-3-sonnet")
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no LLM provider configured: set at least one of FORGECODE_ANTHROPIC_API_KEY, FORGECODE_GEMINI_API_KEY, FORGECODE_OPENROUTER_API_KEY, FORGECODE_SELF_HOSTED_ENDPOINT, FORGECODE_AWS_REGION")
	}

	initial := providers.Name(strings.ReplaceAll(cfg.LLM.Provider, "_", "-"))
	if _, ok := set[initial]; !ok {
		for name := range set {
			initial = name
			break
		}
	}

	return providers.NewClient(set, nil, rate.NewLimiter(rate.Limit(5), 10), initial, cfg.LLM.Model)
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
