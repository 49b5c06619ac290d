package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/forgecode/internal/config"
)

func TestExpandHomeExpandsTildeSlash(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}
	got := expandHome("~/forgecode/workspace")
	want := filepath.Join(home, "forgecode/workspace")
	if got != want {
		t.Fatalf("expandHome: got %q, want %q", got, want)
	}
}

func TestExpandHomeLeavesAbsolutePathUnchanged(t *testing.T) {
	if got := expandHome("/tmp/demo"); got != "/tmp/demo" {
		t.Fatalf("expected unchanged absolute path, got %q", got)
	}
}

func TestBuildProviderClientFailsWithNoCredentials(t *testing.T) {
	cfg := config.Default()
	if _, err := buildProviderClient(cfg); err == nil {
		t.Fatal("expected an error when no provider credentials are configured")
	}
}

func TestBuildProviderClientFallsBackWhenConfiguredProviderUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.Provider = "aws-managed"
	cfg.Providers.Anthropic.APIKey = "test-key"

	client, err := buildProviderClient(cfg)
	if err != nil {
		t.Fatalf("buildProviderClient: %v", err)
	}
	if client == nil {
		t.Fatal("expected a non-nil client")
	}
}
