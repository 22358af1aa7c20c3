package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.RAG.TopK != 3 || cfg.Cache.PromptTTL != 5*time.Minute || cfg.RAG.BatchItemTimeout != 60*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minesafe.yaml")
	yml := `
server:
  port: "9090"
gemini:
  generate_model: gemini-test
  temperature: 0.2
  timeout: 5s
rag:
  top_k: 5
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("GEMINI_TIMEOUT", "not-a-duration")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port: got %q", cfg.Server.Port)
	}
	if cfg.Gemini.GenerateModel != "gemini-test" || cfg.Gemini.Temperature != 0.2 {
		t.Errorf("gemini: got %+v", cfg.Gemini)
	}
	if cfg.Gemini.Timeout != 5*time.Second {
		t.Errorf("invalid env duration should keep file value, got %v", cfg.Gemini.Timeout)
	}
	if cfg.RAG.TopK != 7 {
		t.Errorf("env should override file, got %d", cfg.RAG.TopK)
	}
	if cfg.Gemini.EmbedModel != Default().Gemini.EmbedModel {
		t.Errorf("unset fields should keep defaults, got %q", cfg.Gemini.EmbedModel)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "true")
	t.Setenv("X_INT", "nope")
	if !envBool("X_BOOL", false) {
		t.Error("envBool should parse true")
	}
	if envInt("X_INT", 4) != 4 {
		t.Error("envInt should fall back on parse error")
	}
	if envOr("X_UNSET_KEY", "fb") != "fb" {
		t.Error("envOr should fall back when unset")
	}
}
