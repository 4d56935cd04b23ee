package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quill/internal/identity"
	"quill/internal/services"
)

// DefaultTool is the conversion binary invoked when none is configured.
const DefaultTool = "supernote-tool"

const defaultTimeout = 2 * time.Minute

// Service rasterizes note files via an external tool.
type Service struct {
	tool          string
	timeout       time.Duration
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a rasterization service. An empty tool falls back to
// DefaultTool.
func NewService(tool string, timeoutSeconds int) *Service {
	if strings.TrimSpace(tool) == "" {
		tool = DefaultTool
	}
	timeout := defaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &Service{tool: tool, timeout: timeout}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

// Rasterize converts notePath into PNG pages under outputDir and returns the
// produced page paths, lowest page first. The tool writes pages named
// "<base>_<page>.png" next to the requested output path.
func (s *Service) Rasterize(ctx context.Context, notePath, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "rasterize", "create output directory", err)
	}

	base := identity.Normalize(notePath)
	target := filepath.Join(outputDir, base+".png")
	args := []string{"convert", "-t", "png", "-a", notePath, target}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	output, err := s.run(ctx, s.tool, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "rasterize",
			fmt.Sprintf("%s: %s", filepath.Base(notePath), strings.TrimSpace(string(output))), err)
	}

	pages, err := s.collectPages(outputDir, base)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrInvalidResponse, "render", "rasterize",
			filepath.Base(notePath)+": tool produced no pages", nil)
	}
	return pages, nil
}

// collectPages finds the page files the tool emitted for base. Single-page
// notes may come out as "<base>.png" without a page suffix.
func (s *Service) collectPages(outputDir, base string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "rasterize", "read output directory", err)
	}
	var pages []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		if identity.Normalize(entry.Name()) != base {
			continue
		}
		pages = append(pages, filepath.Join(outputDir, entry.Name()))
	}
	sort.Slice(pages, func(i, j int) bool {
		return identity.PageIndex(pages[i]) < identity.PageIndex(pages[j])
	})
	return pages, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
