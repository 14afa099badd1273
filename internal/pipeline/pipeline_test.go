package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/ppiankov/sitclass/internal/llm"
	"github.com/ppiankov/sitclass/internal/model"
	"github.com/ppiankov/sitclass/internal/taxonomy"
	"github.com/ppiankov/sitclass/internal/worker"
)

// firstOptionModel always picks option A, except for descriptions it is
// told to refuse
type firstOptionModel struct {
	mu     sync.Mutex
	refuse string
	calls  int
}

func (m *firstOptionModel) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.refuse != "" && strings.Contains(req.Prompt, "Description to classify: "+m.refuse+"\n") {
		return &llm.CompletionResponse{Text: "I cannot tell"}, nil
	}
	return &llm.CompletionResponse{Text: "A"}, nil
}

func seededStore(t *testing.T) *taxonomy.Store {
	t.Helper()
	store, err := taxonomy.Open(filepath.Join(t.TempDir(), "sitc.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if _, err := store.LoadSeedFile(context.Background(), filepath.Join("..", "taxonomy", "testdata", "seed.yaml")); err != nil {
		t.Fatalf("load seed: %v", err)
	}
	return store
}

func newTestPipeline(t *testing.T, m *firstOptionModel, format string) *Pipeline {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Output.Format = format

	p, err := Assemble(cfg, seededStore(t), m, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return p
}

func TestPipeline_ClassifyOne(t *testing.T) {
	p := newTestPipeline(t, &firstOptionModel{}, model.FormatCSV)

	r := p.ClassifyOne(context.Background(), "Almendras")

	// A at every level: 0, 05, 057, 057.7
	if r.Code() != "057.7" {
		t.Errorf("expected 057.7, got %s", r.Code())
	}
	if r.Label() != "Edible nuts, fresh or dried" {
		t.Errorf("unexpected label %q", r.Label())
	}
}

func TestPipeline_ProcessFile(t *testing.T) {
	m := &firstOptionModel{refuse: "gibberish"}
	p := newTestPipeline(t, m, model.FormatCSV)
	var progress bytes.Buffer
	p.Progress = &progress

	dir := t.TempDir()
	in := filepath.Join(dir, "imports.csv")
	content := "Item,Description\n1,Almendras\n2,gibberish\n"
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	summary, err := p.ProcessFile(context.Background(), in, outDir)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if summary.Total != 2 || summary.Unclassified != 1 || summary.Classified() != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.Output != filepath.Join(outDir, "imports_classified.csv") {
		t.Errorf("unexpected output path %s", summary.Output)
	}

	data, err := os.ReadFile(summary.Output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "Item,Description,SITC_Code,SITC_Description\n" +
		"1,Almendras,057.7,\"Edible nuts, fresh or dried\"\n" +
		"2,gibberish,IDK,Unable to classify\n"
	if string(data) != want {
		t.Errorf("unexpected output:\n%s", data)
	}

	if !strings.Contains(progress.String(), "[1/2] Almendras → 057.7") {
		t.Errorf("missing progress line:\n%s", progress.String())
	}
}

func TestPipeline_ProcessFile_NoColumn(t *testing.T) {
	p := newTestPipeline(t, &firstOptionModel{}, model.FormatJSON)

	in := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(in, []byte("Name\nx\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.ProcessFile(context.Background(), in, ""); err == nil {
		t.Error("expected error for CSV without description column")
	}
}

func TestPipeline_BatchAcrossFiles(t *testing.T) {
	p := newTestPipeline(t, &firstOptionModel{}, model.FormatJSONL)

	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("Almendras\nCarbon vegetal\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, path)
	}

	results := worker.NewBatchProcessor(p.ForDir(""), 2).ProcessFiles(context.Background(), inputs)
	for i, res := range results {
		if res.Error != nil {
			t.Fatalf("%s: %v", res.Path, res.Error)
		}
		if res.Path != inputs[i] {
			t.Errorf("result %d out of order: %s", i, res.Path)
		}
		if res.Summary.Total != 2 {
			t.Errorf("%s: expected 2 descriptions, got %d", res.Path, res.Summary.Total)
		}
		if _, err := os.Stat(res.Summary.Output); err != nil {
			t.Errorf("missing output for %s: %v", res.Path, err)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Classifier.Attempts = 0
	cfg.Taxonomy.DBPath = filepath.Join(t.TempDir(), "sitc.db")

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected validation error")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "mystery"
	cfg.Taxonomy.DBPath = filepath.Join(t.TempDir(), "sitc.db")

	if _, err := New(cfg, zaptest.NewLogger(t)); err == nil {
		t.Error("expected provider error")
	}
}

func TestNew_Ollama(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.Model = "llama3"
	cfg.Taxonomy.DBPath = filepath.Join(t.TempDir(), "sitc.db")
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	p, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
