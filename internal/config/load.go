package config

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Load reads path (JSON5, tolerant of comments/trailing commas, per
// the teacher's config_load.go use of titanous/json5), overlays
// environment variables, then command-line flags, matching spec.md
// §6.3's precedence: flags > env > defaults.
func Load(path string, args []string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.applyFlagOverrides(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays environment variables, mirroring the
// teacher's config_load.go applyEnvOverrides (one envStr/envInt/envDur
// call per recognized option, env values winning over file values).
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envDur := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	envStr("FORGECODE_LLM_PROVIDER", &c.LLM.Provider)
	envStr("FORGECODE_LLM_MODEL", &c.LLM.Model)
	envInt("FORGECODE_SERVER_PORT", &c.Server.Port)
	envStr("FORGECODE_PROJECT_PATH", &c.Project.Path)
	envStr("FORGECODE_DEFAULT_PROJECT_NAME", &c.Project.DefaultName)

	envDur("FORGECODE_LOOP_TIMEOUT", &c.Loop.LoopTimeout)
	envDur("FORGECODE_IDLE_THRESHOLD", &c.Loop.IdleThreshold)
	envInt("FORGECODE_IDLE_TICKS_REQUIRED", &c.Loop.IdleTicksRequired)
	envDur("FORGECODE_MONITOR_PERIOD", &c.Loop.MonitorPeriod)
	envInt("FORGECODE_INBOX_CAPACITY", &c.Loop.InboxCapacity)
	envInt("FORGECODE_ROUTER_CAPACITY", &c.Loop.RouterCapacity)
	envDur("FORGECODE_MAX_LLM_WALL_CLOCK", &c.Loop.MaxLLMWallClock)

	envStr("FORGECODE_AWS_REGION", &c.Providers.AWS.Region)
	envStr("FORGECODE_AWS_ACCESS_KEY_ID", &c.Providers.AWS.AccessKeyID)
	envStr("FORGECODE_AWS_SECRET_ACCESS_KEY", &c.Providers.AWS.SecretAccessKey)
	envStr("FORGECODE_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("FORGECODE_GEMINI_API_KEY", &c.Providers.Gemini.APIKey)
	envStr("FORGECODE_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("FORGECODE_SELF_HOSTED_ENDPOINT", &c.Providers.SelfHosted.Endpoint)
}

// applyFlagOverrides parses args as a flag set covering the
// non-credential options, the highest-precedence layer per spec.md
// §6.3. Credentials are intentionally flag-less: they only ever come
// from the environment, per the teacher's own secret-handling
// convention (DatabaseConfig.PostgresDSN, TailscaleConfig.AuthKey).
func (c *Config) applyFlagOverrides(args []string) error {
	fs := flag.NewFlagSet("forgecode", flag.ContinueOnError)
	provider := fs.String("llm-provider", c.LLM.Provider, "llm provider")
	model := fs.String("llm-model", c.LLM.Model, "llm model")
	port := fs.Int("server-port", c.Server.Port, "server port")
	projectPath := fs.String("project-path", c.Project.Path, "project directory")
	projectName := fs.String("default-project-name", c.Project.DefaultName, "default project name")
	loopTimeout := fs.Duration("loop-timeout", c.Loop.LoopTimeout, "agent loop deadline")
	idleThreshold := fs.Duration("idle-threshold", c.Loop.IdleThreshold, "quiescence idle threshold")
	idleTicks := fs.Int("idle-ticks-required", c.Loop.IdleTicksRequired, "quiescence idle ticks required")
	monitorPeriod := fs.Duration("monitor-period", c.Loop.MonitorPeriod, "loop monitor sampling cadence")
	inboxCapacity := fs.Int("inbox-capacity", c.Loop.InboxCapacity, "per-agent inbox capacity")
	routerCapacity := fs.Int("router-capacity", c.Loop.RouterCapacity, "router queue capacity")
	maxWallClock := fs.Duration("max-llm-wall-clock", c.Loop.MaxLLMWallClock, "per-call LLM wall clock budget")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	c.LLM.Provider = *provider
	c.LLM.Model = *model
	c.Server.Port = *port
	c.Project.Path = *projectPath
	c.Project.DefaultName = *projectName
	c.Loop.LoopTimeout = *loopTimeout
	c.Loop.IdleThreshold = *idleThreshold
	c.Loop.IdleTicksRequired = *idleTicks
	c.Loop.MonitorPeriod = *monitorPeriod
	c.Loop.InboxCapacity = *inboxCapacity
	c.Loop.RouterCapacity = *routerCapacity
	c.Loop.MaxLLMWallClock = *maxWallClock
	return nil
}

// WatchTunables watches path for changes and invokes onChange with the
// freshly reloaded Config whenever the file is written, letting
// non-credential tunables (loop timeout, idle thresholds) hot-reload
// without a process restart — mirroring the teacher's fsnotify-based
// config hot-reload. Credential fields never change via this path
// (Load re-reads env on every reload, same as the initial Load).
func WatchTunables(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path, nil)
				if err != nil {
					slog.Warn("config.reload_failed", "path", path, "error", err.Error())
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config.watch_error", "path", path, "error", err.Error())
			}
		}
	}()
	return nil
}
