// Package config holds the orchestrator's recognized options (spec.md
// §6.3): provider selection/credentials, server/project settings, and
// the Loop Manager's timing knobs, loaded with flags > env > defaults
// precedence.
//
// Grounded on the teacher's internal/config/config.go Config struct
// shape (nested per-concern sub-structs, JSON tags) and
// config_load.go's Default/Load/applyEnvOverrides pattern, narrowed
// from the teacher's full gateway config (channels, TTS, cron,
// Tailscale, managed-mode database) to exactly spec.md §6.3's option
// set.
package config

import "time"

// Config is the root configuration this build recognizes.
type Config struct {
	LLM       LLMConfig       `json:"llm"`
	Server    ServerConfig    `json:"server"`
	Project   ProjectConfig   `json:"project"`
	Loop      LoopConfig      `json:"loop"`
	Providers ProvidersConfig `json:"providers"`
}

// LLMConfig selects the active provider and model, per spec.md §4.2's
// closed provider enum.
type LLMConfig struct {
	Provider string `json:"llm_provider"` // local|aws_managed|openrouter_aggregator|google_gemini|anthropic_direct
	Model    string `json:"llm_model"`
}

// ServerConfig configures the streaming gateway's HTTP listener.
type ServerConfig struct {
	Port int `json:"server_port"`
}

// ProjectConfig configures the default project the Coordinator's
// ProjectContext is seeded with.
type ProjectConfig struct {
	Path        string `json:"project_path"`
	DefaultName string `json:"default_project_name"`
}

// LoopConfig carries the Loop Manager's timing knobs (spec.md §4.6,
// §6.3) plus the two bounded-channel capacities (spec.md §5).
type LoopConfig struct {
	LoopTimeout       time.Duration `json:"loop_timeout"`
	IdleThreshold     time.Duration `json:"idle_threshold"`
	IdleTicksRequired int           `json:"idle_ticks_required"`
	MonitorPeriod     time.Duration `json:"monitor_period"`
	InboxCapacity     int           `json:"inbox_capacity"`
	RouterCapacity    int           `json:"router_capacity"`
	// MaxLLMWallClock is loaded and overridable but no LLM call reads
	// it; a Generate call is bounded only by the context it is given.
	MaxLLMWallClock   time.Duration `json:"max_llm_wall_clock"`
}

// ProvidersConfig holds every provider's credentials/endpoint. Secrets
// (APIKey, SecretAccessKey) are never populated from the JSON5 file —
// only from environment variables, per the teacher's DatabaseConfig
// PostgresDSN `json:"-"` convention for credential fields.
type ProvidersConfig struct {
	AWS struct {
		Region          string `json:"-"`
		AccessKeyID     string `json:"-"`
		SecretAccessKey string `json:"-"`
	} `json:"aws"`
	OpenRouter struct {
		APIKey string `json:"-"`
	} `json:"openrouter"`
	Gemini struct {
		APIKey string `json:"-"`
	} `json:"gemini"`
	Anthropic struct {
		APIKey string `json:"-"`
	} `json:"anthropic"`
	SelfHosted struct {
		Endpoint string `json:"endpoint"`
	} `json:"self_hosted"`
}

// Default returns a Config with the same kind of conservative
// defaults the teacher's config.Default() seeds (every timing knob
// matching the Loop Manager's own defaultConfig in internal/looper).
func Default() *Config {
	return &Config{
		LLM: LLMConfig{Provider: "anthropic_direct", Model: "claude-sonnet-4-5-20250929"},
		Server: ServerConfig{Port: 18080},
		Project: ProjectConfig{Path: "~/.forgecode/workspace", DefaultName: "default"},
		Loop: LoopConfig{
			LoopTimeout:       20 * time.Minute,
			IdleThreshold:     30 * time.Second,
			IdleTicksRequired: 6,
			MonitorPeriod:     5 * time.Second,
			InboxCapacity:     100,
			RouterCapacity:    1000,
			MaxLLMWallClock:   2 * time.Minute,
		},
	}
}
