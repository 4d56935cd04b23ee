package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"quill/internal/config"
)

func testConfig(t *testing.T, deviceURL, ollamaURL string) *config.Config {
	t.Helper()
	parsed, err := url.Parse(deviceURL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(parsed.Port())
	if err != nil {
		t.Fatal(err)
	}

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ImagesDir = filepath.Join(base, "images")
	cfg.Paths.NotesDir = filepath.Join(base, "notes")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Device.Host = parsed.Hostname()
	cfg.Device.Port = port
	cfg.Ollama.BaseURL = ollamaURL
	cfg.Ollama.Models = []string{cfg.Models.Extraction, cfg.Models.Metadata}
	cfg.Gateway.RetryDelaySeconds = 0
	cfg.Gateway.PacingDelaySeconds = 0
	cfg.Vault.Dir = filepath.Join(base, "vault")
	if err := os.MkdirAll(cfg.Vault.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func newDeviceServer(t *testing.T, noteBytes *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Note":
			fmt.Fprint(w, `<html><script>
const json = '{"fileList":[{"name":"Ideas.note","uri":"/Note/Ideas.note","isDirectory":false}]}'
</script></html>`)
		case "/Note/Ideas.note":
			w.Write(*noteBytes)
		default:
			http.NotFound(w, r)
		}
	}))
}

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var response string
		switch {
		case strings.Contains(req.Prompt, "tags"):
			response = `{"items":[{"value":"planning"}]}`
		case strings.Contains(req.Prompt, "keywords"):
			response = `{"items":[{"value":"roadmap"}]}`
		default:
			response = "Extracted Text\nDiscussed The Roadmap"
		}
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func TestSyncEndToEnd(t *testing.T) {
	noteBytes := []byte("note v1")
	deviceServer := newDeviceServer(t, &noteBytes)
	defer deviceServer.Close()
	modelServer := newModelServer(t)
	defer modelServer.Close()

	cfg := testConfig(t, deviceServer.URL, modelServer.URL)
	p := New(cfg, nil, nil)
	p.renderer.WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, os.WriteFile(filepath.Join(cfg.Paths.ImagesDir, "Ideas_0.png"), []byte("png"), 0o644)
	})

	if err := p.Sync(context.Background(), "manual", false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "Ideas.note")); err != nil {
		t.Fatalf("note not promoted: %v", err)
	}
	text, err := os.ReadFile(filepath.Join(cfg.Paths.NotesDir, "Ideas_0.txt"))
	if err != nil {
		t.Fatalf("extracted text missing: %v", err)
	}
	body := string(text)
	if !strings.Contains(body, "tags:") || !strings.Contains(body, "[[roadmap]]") {
		t.Fatalf("annotation missing: %q", body)
	}
	exported := filepath.Join(cfg.Vault.Dir, cfg.Vault.Folder, "Ideas_0.md")
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("vault export missing: %v", err)
	}
}

func TestSyncSkipsStagesWhenUnchanged(t *testing.T) {
	noteBytes := []byte("note v1")
	deviceServer := newDeviceServer(t, &noteBytes)
	defer deviceServer.Close()
	modelServer := newModelServer(t)
	defer modelServer.Close()

	cfg := testConfig(t, deviceServer.URL, modelServer.URL)
	p := New(cfg, nil, nil)
	var conversions int
	p.renderer.WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		conversions++
		return nil, os.WriteFile(filepath.Join(cfg.Paths.ImagesDir, "Ideas_0.png"), []byte("png"), 0o644)
	})

	if err := p.Sync(context.Background(), "manual", false); err != nil {
		t.Fatal(err)
	}
	if err := p.Sync(context.Background(), "manual", false); err != nil {
		t.Fatal(err)
	}
	if conversions != 1 {
		t.Fatalf("unchanged corpus must not reconvert, saw %d conversions", conversions)
	}
}

func TestSyncEndsRunWhenExtractionFullyFails(t *testing.T) {
	noteBytes := []byte("note v1")
	deviceServer := newDeviceServer(t, &noteBytes)
	defer deviceServer.Close()

	var metadataCalls int
	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.Contains(req.Prompt, "tags") || strings.Contains(req.Prompt, "keywords") {
			metadataCalls++
		}
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer modelServer.Close()

	cfg := testConfig(t, deviceServer.URL, modelServer.URL)
	cfg.Gateway.MaxRetries = 0
	p := New(cfg, nil, nil)
	p.renderer.WithCommandRunner(func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, os.WriteFile(filepath.Join(cfg.Paths.ImagesDir, "Ideas_0.png"), []byte("png"), 0o644)
	})

	stale := filepath.Join(cfg.Paths.NotesDir, "Stale.txt")
	staleBody := []byte("old unrelated content")
	if err := os.WriteFile(stale, staleBody, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := p.Sync(context.Background(), "manual", false); err != nil {
		t.Fatal(err)
	}

	if metadataCalls != 0 {
		t.Fatalf("failed extraction must not widen annotation to the corpus, saw %d metadata calls", metadataCalls)
	}
	got, err := os.ReadFile(stale)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(staleBody) {
		t.Fatalf("note outside the work set was rewritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Vault.Dir, cfg.Vault.Folder, "Stale.md")); !os.IsNotExist(err) {
		t.Fatalf("note outside the work set was exported: %v", err)
	}
}

func TestSyncFatalWhenWalkFails(t *testing.T) {
	deviceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer deviceServer.Close()
	modelServer := newModelServer(t)
	defer modelServer.Close()

	cfg := testConfig(t, deviceServer.URL, modelServer.URL)
	p := New(cfg, nil, nil)
	if err := p.Sync(context.Background(), "manual", false); err == nil {
		t.Fatal("expected walk failure to be fatal to the run")
	}
}
