package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sitclass/internal/model"
)

func TestLoadConfig_Precedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "classifier:\n  max_depth: 3\n  attempts: 5\nllm:\n  provider: anthropic\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	t.Setenv("SITCLASS_CLASSIFIER_ATTEMPTS", "2")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	initConfig()

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if c.Classifier.Attempts != 2 {
		t.Errorf("env should override file: expected 2 attempts, got %d", c.Classifier.Attempts)
	}
	if c.Classifier.MaxDepth != 3 {
		t.Errorf("file should override default: expected depth 3, got %d", c.Classifier.MaxDepth)
	}
	if c.Classifier.MaxIterations != 10 {
		t.Errorf("expected default iterations, got %d", c.Classifier.MaxIterations)
	}
	if c.LLM.APIKey != "sk-ant-test" {
		t.Errorf("expected provider key from environment, got %q", c.LLM.APIKey)
	}
	if c.Cache.MemoryTTL != time.Hour {
		t.Errorf("expected 1h memory TTL, got %v", c.Cache.MemoryTTL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("merged config should be valid: %v", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sitclass", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# sitclass Configuration File") {
		t.Errorf("missing header:\n%s", data)
	}
	if strings.Contains(string(data), "api_key") {
		t.Error("API keys must not be written to the config file")
	}

	var c model.Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if c.Classifier.Attempts != 3 || c.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected round trip %+v", c.Classifier)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when the file already exists")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug"); err != nil {
		t.Errorf("debug level should be accepted: %v", err)
	}
	if _, err := newLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
