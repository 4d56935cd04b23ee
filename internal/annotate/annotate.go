package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"quill/internal/fileutil"
	"quill/internal/logging"
	"quill/internal/runner"
	"quill/internal/services"
	"quill/internal/services/genai"
)

const (
	maxTags     = 3
	maxKeywords = 7
)

var (
	frontmatterBlock = regexp.MustCompile(`(?s)^---\n.*?\n---\n`)
	existingKeywords = regexp.MustCompile(`\[\[(.*?)\]\]`)
)

var listSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"value": {"type": "string"},
					"description": {"type": "string"}
				},
				"required": ["value"]
			}
		}
	},
	"required": ["items"]
}`)

type listResponse struct {
	Items []struct {
		Value string `json:"value"`
	} `json:"items"`
}

// Caller issues generation calls through the gateway.
type Caller interface {
	Call(ctx context.Context, model string, req genai.Request) (string, error)
}

// Stage annotates extracted text files in place.
type Stage struct {
	gateway Caller
	model   string
	workers int
	logger  *slog.Logger
}

// New constructs an annotation stage. workers below 1 runs strictly
// sequential.
func New(gateway Caller, model string, workers int, logger *slog.Logger) *Stage {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		gateway: gateway,
		model:   model,
		workers: workers,
		logger:  logging.WithComponent(logger, "annotate"),
	}
}

// Run annotates every text file in the batch and returns per-item results.
// Each successful artifact is the annotated file's path, unchanged files
// included.
func (s *Stage) Run(ctx context.Context, textPaths []string) []runner.Result[string, string] {
	results := runner.RunBatch(ctx, textPaths, s.workers, s.annotateOne)
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("annotation failed",
				logging.String(logging.FieldStage, "annotate"),
				logging.String("file", filepath.Base(r.Item)),
				logging.Error(r.Err))
		}
	}
	return results
}

func (s *Stage) annotateOne(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "annotate", "read", path, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		s.logger.Info("skipping empty file",
			logging.String(logging.FieldStage, "annotate"),
			logging.String("file", filepath.Base(path)))
		return path, nil
	}
	original := text

	if !existingKeywords.MatchString(text) {
		keywords, err := s.generateList(ctx, keywordPrompt(text), maxKeywords)
		if err != nil {
			return "", err
		}
		text = applyKeywords(text, keywords)
	}

	if !hasTagBlock(text) {
		tags, err := s.generateList(ctx, tagPrompt(text), maxTags)
		if err != nil {
			return "", err
		}
		text = applyTags(text, tags)
	}

	if text != original {
		if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
			return "", services.Wrap(services.ErrTransient, "annotate", "write", path, err)
		}
		s.logger.Info("annotated file",
			logging.String(logging.FieldStage, "annotate"),
			logging.String(logging.FieldModel, s.model),
			logging.String("file", filepath.Base(path)))
	}
	return path, nil
}

func (s *Stage) generateList(ctx context.Context, prompt string, limit int) ([]string, error) {
	response, err := s.gateway.Call(ctx, s.model, genai.Request{
		Prompt: prompt,
		Schema: listSchema,
	})
	if err != nil {
		return nil, err
	}
	var decoded listResponse
	if err := genai.DecodeJSON(response, &decoded); err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, "annotate", "decode", "metadata list", err)
	}
	var values []string
	for _, item := range decoded.Items {
		value := strings.ToLower(strings.TrimSpace(item.Value))
		if value == "" {
			continue
		}
		values = append(values, value)
		if len(values) == limit {
			break
		}
	}
	return values, nil
}

func hasTagBlock(text string) bool {
	block := frontmatterBlock.FindString(text)
	if block == "" {
		return false
	}
	return strings.Contains(block, "tags:")
}

// applyTags prepends a frontmatter block listing the tags.
func applyTags(text string, tags []string) string {
	if len(tags) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString("---\ntags:\n")
	for _, tag := range tags {
		fmt.Fprintf(&b, "- %s\n", tag)
	}
	b.WriteString("---\n")
	b.WriteString(text)
	return b.String()
}

// applyKeywords wraps whole-word occurrences of each keyword in [[...]] so
// the vault links related notes together.
func applyKeywords(text string, keywords []string) string {
	for _, kw := range keywords {
		pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			continue
		}
		text = pattern.ReplaceAllString(text, "[["+kw+"]]")
	}
	return text
}

func tagPrompt(text string) string {
	return fmt.Sprintf(
		"Given this notebook text, provide a list of up to %d tags that serve as a theme, category or subject. text: %s",
		maxTags, text)
}

func keywordPrompt(text string) string {
	return fmt.Sprintf(
		"Given this notebook text, provide a list of up to %d keywords that work as backlinks to link relevant notes together. text: %s",
		maxKeywords, text)
}
