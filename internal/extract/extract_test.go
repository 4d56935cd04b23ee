package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quill/internal/services"
	"quill/internal/services/genai"
)

type stubGateway struct {
	responses map[string]string
	err       error
	calls     []genai.Request
}

func (s *stubGateway) Call(_ context.Context, _ string, req genai.Request) (string, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return "", s.err
	}
	if resp, ok := s.responses[filepath.Base(req.ImagePath)]; ok {
		return resp, nil
	}
	return "Extracted Text\nSome Content", nil
}

func seedCorpus(t *testing.T, relPaths ...string) string {
	t.Helper()
	corpus := t.TempDir()
	for _, rel := range relPaths {
		path := filepath.Join(corpus, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("notebytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return corpus
}

func seedImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunWritesTextMirroringCorpusStructure(t *testing.T) {
	corpus := seedCorpus(t, "Projects/Meeting.note")
	images := t.TempDir()
	notes := t.TempDir()
	image := seedImage(t, images, "Meeting_0.png")

	gw := &stubGateway{responses: map[string]string{
		"Meeting_0.png": "Extract\nHello World",
	}}
	stage := New(gw, "gemma3:12b", corpus, notes, 1, nil)

	results := stage.Run(context.Background(), []string{image})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("unexpected results: %+v", results)
	}

	want := filepath.Join(notes, "Projects", "Meeting_0.txt")
	if results[0].Artifact != want {
		t.Fatalf("artifact %q, want %q", results[0].Artifact, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Fatalf("cleaned text mismatch: %q", data)
	}
	if len(gw.calls) != 1 || gw.calls[0].ImagePath != image {
		t.Fatalf("gateway not called with the image: %+v", gw.calls)
	}
}

func TestRunUnresolvableImageIsIdentityError(t *testing.T) {
	corpus := seedCorpus(t, "Projects/Meeting.note")
	images := t.TempDir()
	orphan := seedImage(t, images, "Orphan_0.png")
	resolvable := seedImage(t, images, "Meeting_0.png")

	gw := &stubGateway{}
	stage := New(gw, "gemma3:12b", corpus, t.TempDir(), 1, nil)

	results := stage.Run(context.Background(), []string{orphan, resolvable})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			if !errors.Is(r.Err, services.ErrIdentity) {
				t.Fatalf("expected identity error, got %v", r.Err)
			}
			failed++
			continue
		}
		succeeded++
	}
	if failed != 1 || succeeded != 1 {
		t.Fatalf("orphan must fail alone: %d failed, %d succeeded", failed, succeeded)
	}
}

func TestRunGatewayFailureIsolatedPerItem(t *testing.T) {
	corpus := seedCorpus(t, "A.note", "B.note")
	images := t.TempDir()
	a := seedImage(t, images, "A_0.png")
	b := seedImage(t, images, "B_0.png")

	gw := &stubGateway{err: services.Wrap(services.ErrTransient, "genai", "generate", "down", nil)}
	stage := New(gw, "gemma3:12b", corpus, t.TempDir(), 1, nil)

	results := stage.Run(context.Background(), []string{a, b})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err == nil {
			t.Fatalf("expected both items to fail, got success for %s", r.Item)
		}
	}
}

func TestListImages(t *testing.T) {
	images := t.TempDir()
	seedImage(t, images, "A_0.png")
	sub := filepath.Join(images, "Projects")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	seedImage(t, sub, "B_1.png")
	if err := os.WriteFile(filepath.Join(images, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := ListImages(images)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 images, got %v", found)
	}
}
