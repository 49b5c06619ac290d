package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsThenEnvThenFlags(t *testing.T) {
	os.Setenv("FORGECODE_LLM_MODEL", "from-env-model")
	defer os.Unsetenv("FORGECODE_LLM_MODEL")

	cfg, err := Load("/nonexistent/config.json5", []string{"-server-port", "9999"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Model != "from-env-model" {
		t.Fatalf("expected env override, got %q", cfg.LLM.Model)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected flag override, got %d", cfg.Server.Port)
	}
	if cfg.Loop.IdleTicksRequired != Default().Loop.IdleTicksRequired {
		t.Fatalf("expected default idle_ticks_required to survive, got %d", cfg.Loop.IdleTicksRequired)
	}
}

func TestLoadParsesJSON5File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	body := `{
		// trailing comments and commas are fine with json5
		llm: { llm_provider: "google_gemini", llm_model: "gemini-2.5-pro" },
		loop: { loop_timeout: 600000000000 },
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "google_gemini" || cfg.LLM.Model != "gemini-2.5-pro" {
		t.Fatalf("expected file values, got %+v", cfg.LLM)
	}
	if cfg.Loop.LoopTimeout != 10*time.Minute {
		t.Fatalf("expected parsed loop_timeout, got %v", cfg.Loop.LoopTimeout)
	}
}

func TestDefaultNeverPopulatesCredentials(t *testing.T) {
	cfg := Default()
	if cfg.Providers.Anthropic.APIKey != "" || cfg.Providers.AWS.SecretAccessKey != "" {
		t.Fatal("expected credential fields to be empty by default")
	}
}
