package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/fileutil"
	"quill/internal/identity"
	"quill/internal/logging"
	"quill/internal/runner"
	"quill/internal/services"
	"quill/internal/services/genai"
	"quill/internal/textutil"
)

const extractionPrompt = "extract text from the handwriting and only return the text"

// Caller issues generation calls through the gateway.
type Caller interface {
	Call(ctx context.Context, model string, req genai.Request) (string, error)
}

// Stage extracts text from page images.
type Stage struct {
	gateway   Caller
	model     string
	corpusDir string
	notesDir  string
	workers   int
	logger    *slog.Logger
}

// New constructs an extraction stage. corpusDir is the directory holding the
// downloaded note files; notesDir receives the extracted text, mirroring the
// corpus structure. workers below 1 runs strictly sequential.
func New(gateway Caller, model, corpusDir, notesDir string, workers int, logger *slog.Logger) *Stage {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		gateway:   gateway,
		model:     model,
		corpusDir: corpusDir,
		notesDir:  notesDir,
		workers:   workers,
		logger:    logging.WithComponent(logger, "extract"),
	}
}

// Run extracts text from every image in the batch and returns per-item
// results. Each successful artifact is the path of the written text file.
func (s *Stage) Run(ctx context.Context, imagePaths []string) []runner.Result[string, string] {
	index, err := s.corpusIndex()
	if err != nil {
		results := make([]runner.Result[string, string], 0, len(imagePaths))
		for _, image := range imagePaths {
			results = append(results, runner.Result[string, string]{Item: image, Err: err})
		}
		return results
	}

	results := runner.RunBatch(ctx, imagePaths, s.workers, func(ctx context.Context, image string) (string, error) {
		return s.extractOne(ctx, image, index)
	})
	for _, r := range results {
		if r.Err != nil {
			s.logger.Warn("extraction failed",
				logging.String(logging.FieldStage, "extract"),
				logging.String("image", filepath.Base(r.Item)),
				logging.Error(r.Err))
		}
	}
	return results
}

// corpusIndex maps each note's logical identity to its corpus-relative
// directory. Identities are not unique across directories on a real device;
// the first hit wins and collisions are logged.
func (s *Stage) corpusIndex() (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.WalkDir(s.corpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key := identity.Normalize(path)
		rel, relErr := filepath.Rel(s.corpusDir, filepath.Dir(path))
		if relErr != nil {
			return relErr
		}
		if prior, ok := index[key]; ok && prior != rel {
			s.logger.Warn("duplicate note identity",
				logging.String("identity", key),
				logging.String("kept", prior),
				logging.String("ignored", rel))
			return nil
		}
		index[key] = rel
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrIdentity, "extract", "index", "walk corpus", err)
	}
	return index, nil
}

func (s *Stage) extractOne(ctx context.Context, image string, index map[string]string) (string, error) {
	key := identity.Normalize(image)
	relDir, ok := index[key]
	if !ok {
		return "", services.Wrap(services.ErrIdentity, "extract", "resolve",
			fmt.Sprintf("%s: no source note with identity %q", filepath.Base(image), key), nil)
	}

	response, err := s.gateway.Call(ctx, s.model, genai.Request{
		Prompt:    extractionPrompt,
		ImagePath: image,
	})
	if err != nil {
		return "", err
	}

	text := textutil.Clean(response, textutil.CleanOptions{CollapseNewlines: false})
	base := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))
	outPath := filepath.Join(s.notesDir, relDir, base+".txt")
	if err := fileutil.WriteFileAtomic(outPath, []byte(text), 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "extract", "write", outPath, err)
	}
	s.logger.Info("extracted page",
		logging.String(logging.FieldStage, "extract"),
		logging.String(logging.FieldModel, s.model),
		logging.String("image", filepath.Base(image)),
		logging.String("output", outPath))
	return outPath, nil
}

// ListImages returns every PNG under imagesDir, for "process everything" runs.
func ListImages(imagesDir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(imagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".png") {
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return images, nil
}
