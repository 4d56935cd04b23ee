package annotate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/internal/services/genai"
)

type stubGateway struct {
	calls []string
}

func (s *stubGateway) Call(_ context.Context, _ string, req genai.Request) (string, error) {
	s.calls = append(s.calls, req.Prompt)
	if strings.Contains(req.Prompt, "keywords") {
		return `{"items":[{"value":"roadmap"},{"value":"budget"}]}`, nil
	}
	return `{"items":[{"value":"planning"},{"value":"work"}]}`, nil
}

func writeNote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Meeting_0.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAddsTagsAndKeywords(t *testing.T) {
	path := writeNote(t, "discussed the roadmap and budget today")
	gw := &stubGateway{}
	stage := New(gw, "qwen2.5:3b", 1, nil)

	results := stage.Run(context.Background(), []string{path})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "---\ntags:\n- planning\n- work\n---\n") {
		t.Fatalf("frontmatter missing: %q", text)
	}
	if !strings.Contains(text, "[[roadmap]]") || !strings.Contains(text, "[[budget]]") {
		t.Fatalf("keywords not linked: %q", text)
	}
	if len(gw.calls) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(gw.calls))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	path := writeNote(t, "discussed the roadmap and budget today")
	stage := New(&stubGateway{}, "qwen2.5:3b", 1, nil)
	if results := stage.Run(context.Background(), []string{path}); results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	second := &stubGateway{}
	stage = New(second, "qwen2.5:3b", 1, nil)
	if results := stage.Run(context.Background(), []string{path}); results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(after) {
		t.Fatalf("second run changed the file:\n%q\nvs\n%q", first, after)
	}
	if len(second.calls) != 0 {
		t.Fatalf("second run must not call the model, made %d calls", len(second.calls))
	}
}

func TestRunSkipsEmptyFiles(t *testing.T) {
	path := writeNote(t, "   \n")
	gw := &stubGateway{}
	stage := New(gw, "qwen2.5:3b", 1, nil)

	results := stage.Run(context.Background(), []string{path})
	if results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	if len(gw.calls) != 0 {
		t.Fatal("empty file must not reach the model")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "   \n" {
		t.Fatalf("empty file was modified: %q", data)
	}
}

func TestRunKeepsExistingKeywords(t *testing.T) {
	path := writeNote(t, "already has a [[link]] in it")
	gw := &stubGateway{}
	stage := New(gw, "qwen2.5:3b", 1, nil)

	if results := stage.Run(context.Background(), []string{path}); results[0].Err != nil {
		t.Fatal(results[0].Err)
	}
	for _, prompt := range gw.calls {
		if strings.Contains(prompt, "keywords") {
			t.Fatal("keyword generation ran despite existing links")
		}
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[[link]]") {
		t.Fatalf("existing link lost: %q", data)
	}
}

func TestApplyKeywordsWholeWordsOnly(t *testing.T) {
	got := applyKeywords("the budget and budgeting process", []string{"budget"})
	if got != "the [[budget]] and budgeting process" {
		t.Fatalf("unexpected replacement: %q", got)
	}
}
