package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Batch.WindowSeconds != 30 {
		t.Errorf("default window = %d, want 30", cfg.Batch.WindowSeconds)
	}
	if cfg.Batch.Window() != 30*time.Second {
		t.Errorf("Window() = %v, want 30s", cfg.Batch.Window())
	}
	if cfg.Records.TableName != "classification_results" {
		t.Errorf("default table = %q", cfg.Records.TableName)
	}
	if cfg.MCP.GitHubURL != "https://api.githubcopilot.com/mcp/" {
		t.Errorf("default github mcp url = %q", cfg.MCP.GitHubURL)
	}
	if cfg.LLM.MaxIterations != 50 {
		t.Errorf("default max iterations = %d, want 50", cfg.LLM.MaxIterations)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BATCH_TIMEOUT_SECONDS", "5")
	t.Setenv("CLASSIFICATION_SERVICE", "http://classifier.internal")
	t.Setenv("TABLE_NAME", "infera_test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Batch.WindowSeconds != 5 {
		t.Errorf("window = %d, want 5", cfg.Batch.WindowSeconds)
	}
	if cfg.Classify.ServiceURL != "http://classifier.internal" {
		t.Errorf("classifier url = %q", cfg.Classify.ServiceURL)
	}
	if cfg.Records.TableName != "infera_test" {
		t.Errorf("table = %q", cfg.Records.TableName)
	}
}

func TestLoadInvalidWindowIgnored(t *testing.T) {
	t.Setenv("BATCH_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.WindowSeconds != 30 {
		t.Errorf("window = %d, want default 30", cfg.Batch.WindowSeconds)
	}
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_OPENAI_TOKEN", "sk-test-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "infera.yaml")
	body := `
server:
  addr: ":9000"
batch:
  window_seconds: 10
llm:
  token: ${TEST_OPENAI_TOKEN}
mcp:
  notion_url: https://mcp.example.com/mcp
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Batch.WindowSeconds != 10 {
		t.Errorf("window = %d, want 10", cfg.Batch.WindowSeconds)
	}
	if cfg.LLM.Token != "sk-test-token" {
		t.Errorf("token was not env-expanded: %q", cfg.LLM.Token)
	}
	if cfg.MCP.NotionURL != "https://mcp.example.com/mcp" {
		t.Errorf("notion url = %q", cfg.MCP.NotionURL)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}
