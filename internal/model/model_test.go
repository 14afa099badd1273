package model

import (
	"strings"
	"testing"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"0", 1},
		{"05", 2},
		{"057", 3},
		{"057.7", 4},
		{"057.71", 5},
		{"", 0},
		{"242.", 0},
		{"24.123", 0},
		{"123456", 6},
	}
	for _, tt := range tests {
		if got := LevelOf(tt.code); got != tt.want {
			t.Errorf("LevelOf(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestParentOf(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"0", ""},
		{"05", "0"},
		{"057", "05"},
		{"057.7", "057"},
		{"057.71", "057.7"},
		{"242.", ""},
		{"24.123", ""},
		{"123456", ""},
		{"1234", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParentOf(tt.code); got != tt.want {
			t.Errorf("ParentOf(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNewNode_MalformedCodes(t *testing.T) {
	for _, code := range []string{"123456", "242.", "24.123", "."} {
		n := NewNode(code, "x")
		if n.Level >= 1 && n.Level <= MaxLevel {
			t.Errorf("NewNode(%q) got valid level %d", code, n.Level)
		}
		if n.ParentCode != "" {
			t.Errorf("NewNode(%q) got parent %q", code, n.ParentCode)
		}
	}
}

func TestNewNode(t *testing.T) {
	n := NewNode(" 242.1 ", " Fuel wood ")
	if n.Code != "242.1" || n.Label != "Fuel wood" {
		t.Errorf("unexpected node %+v", n)
	}
	if n.Level != 4 || n.ParentCode != "242" {
		t.Errorf("expected level 4 under 242, got level %d under %q", n.Level, n.ParentCode)
	}
	if CleanCode(n.Code) != "2421" || Depth(n.Code) != 4 {
		t.Errorf("unexpected clean code %q depth %d", CleanCode(n.Code), Depth(n.Code))
	}
}

func TestAttempt_Deepest(t *testing.T) {
	var empty Attempt
	if _, ok := empty.Deepest(); ok || empty.Succeeded() {
		t.Error("empty attempt should have no result")
	}

	a := Attempt{Path: []Category{{Code: "0"}, {Code: "05"}, {Code: "057"}}}
	got, ok := a.Deepest()
	if !ok || got.Code != "057" {
		t.Errorf("expected 057, got %s", got.Code)
	}

	tie := Attempt{Path: []Category{{Code: "05", Label: "first"}, {Code: "06", Label: "second"}}}
	if got, _ := tie.Deepest(); got.Label != "first" {
		t.Errorf("ties should keep the first entry, got %s", got.Label)
	}
}

func TestUnclassified(t *testing.T) {
	r := Result{Category: Unclassified()}
	if r.Code() != "IDK" || r.Label() != "Unable to classify" {
		t.Errorf("unexpected sentinel %s / %s", r.Code(), r.Label())
	}
	if !r.Category.IsUnclassified() {
		t.Error("sentinel should report unclassified")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"zero attempts", func(c *Config) { c.Classifier.Attempts = 0 }, "attempts"},
		{"depth too deep", func(c *Config) { c.Classifier.MaxDepth = 6 }, "max_depth"},
		{"no iterations", func(c *Config) { c.Classifier.MaxIterations = 0 }, "max_iterations"},
		{"negative window", func(c *Config) { c.Classifier.ContextWindow = -1 }, "context_window"},
		{"zero window", func(c *Config) { c.Classifier.ContextWindow = 0 }, "context_window"},
		{"negative batch", func(c *Config) { c.Classifier.BatchSize = -1 }, "batch_size"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "output format"},
		{"no database", func(c *Config) { c.Taxonomy.DBPath = "" }, "db_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("expected %q in %v", tt.substr, err)
			}
		})
	}
}
