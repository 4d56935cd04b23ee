package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"

	"quill/internal/annotate"
	"quill/internal/config"
	"quill/internal/device"
	"quill/internal/extract"
	"quill/internal/journal"
	"quill/internal/logging"
	"quill/internal/reconcile"
	"quill/internal/render"
	"quill/internal/runner"
	"quill/internal/services"
	"quill/internal/services/genai"
	"quill/internal/vault"
)

// Pipeline owns the stage collaborators for one configured corpus.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *journal.Store

	client     *device.Client
	reconciler *reconcile.Reconciler
	renderer   *render.Service
	extractor  *extract.Stage
	annotator  *annotate.Stage
	exporter   *vault.Exporter
}

// New assembles a pipeline from configuration. store may be nil when run
// history is not wanted.
func New(cfg *config.Config, logger *slog.Logger, store *journal.Store) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := device.NewClient(cfg.DeviceBaseURL(), cfg.DeviceTimeout())
	gateway := genai.NewGateway(genai.NewRegistry(cfg),
		genai.WithBackoffPolicy(genai.BackoffPolicy{
			MaxRetries:  cfg.Gateway.MaxRetries,
			RetryDelay:  cfg.RetryDelay(),
			PacingDelay: cfg.PacingDelay(),
		}),
		genai.WithLogger(logger))

	return &Pipeline{
		cfg:    cfg,
		logger: logging.WithComponent(logger, "pipeline"),
		store:  store,
		client: client,
		reconciler: reconcile.New(client, cfg.Paths.DataDir, cfg.Paths.StagingDir,
			cfg.Device.Root, logger),
		renderer: render.NewService(cfg.Render.Tool, cfg.Render.TimeoutSeconds),
		extractor: extract.New(gateway, cfg.Models.Extraction, cfg.Paths.DataDir,
			cfg.Paths.NotesDir, cfg.RemoteWorkers(), logger),
		annotator: annotate.New(gateway, cfg.Models.Metadata,
			cfg.RemoteWorkers(), logger),
		exporter: vault.New(cfg.Paths.NotesDir, cfg.Vault.Dir, cfg.Vault.Folder, logger),
	}
}

// Pull walks the device catalog and reconciles the corpus, returning the
// change records. A walk failure is fatal to the operation; the caller waits
// for the next trigger.
func (p *Pipeline) Pull(ctx context.Context) ([]reconcile.ChangeRecord, error) {
	entries, err := device.Walk(ctx, p.client, p.cfg.Device.Root, p.cfg.Device.IgnoreDirs)
	if err != nil {
		return nil, err
	}
	p.logger.Info("remote catalog walked",
		logging.String(logging.FieldStage, "pull"),
		logging.Int("files", len(entries)))
	return p.reconciler.Run(ctx, entries)
}

// Convert rasterizes the given note files into the images directory and
// returns the produced page images. A nil notePaths converts the entire
// corpus.
func (p *Pipeline) Convert(ctx context.Context, notePaths []string) ([]string, error) {
	if notePaths == nil {
		var err error
		notePaths, err = p.listNotes()
		if err != nil {
			return nil, err
		}
	}
	notePaths = filterNoteFiles(notePaths)
	if len(notePaths) == 0 {
		return nil, nil
	}

	workers := p.cfg.Gateway.ConvertWorkers
	if workers < 1 {
		workers = min(runtime.NumCPU(), 4)
	}
	results := runner.RunBatch(ctx, notePaths, workers, func(ctx context.Context, note string) ([]string, error) {
		return p.renderer.Rasterize(ctx, note, p.cfg.Paths.ImagesDir)
	})

	var images []string
	for _, r := range results {
		if r.Err != nil {
			p.logger.Warn("conversion failed",
				logging.String(logging.FieldStage, "convert"),
				logging.String("note", filepath.Base(r.Item)),
				logging.Error(r.Err))
			continue
		}
		images = append(images, r.Artifact...)
	}
	p.logger.Info("notes rasterized",
		logging.String(logging.FieldStage, "convert"),
		logging.Int("notes", len(notePaths)),
		logging.Int("pages", len(images)))
	return images, nil
}

// Extract runs text extraction over the given page images and returns the
// written text files. A nil imagePaths extracts every image in the corpus.
func (p *Pipeline) Extract(ctx context.Context, imagePaths []string) ([]string, error) {
	if imagePaths == nil {
		var err error
		imagePaths, err = extract.ListImages(p.cfg.Paths.ImagesDir)
		if err != nil {
			return nil, err
		}
	}
	if len(imagePaths) == 0 {
		return nil, nil
	}

	results := p.extractor.Run(ctx, imagePaths)
	var texts []string
	for _, r := range results {
		if r.Err == nil {
			texts = append(texts, r.Artifact)
		}
	}
	return texts, nil
}

// Annotate enriches the given text files with tags and keywords. A nil
// textPaths annotates every extracted note.
func (p *Pipeline) Annotate(ctx context.Context, textPaths []string) ([]string, error) {
	if textPaths == nil {
		var err error
		textPaths, err = p.listTexts()
		if err != nil {
			return nil, err
		}
	}
	if len(textPaths) == 0 {
		return nil, nil
	}

	results := p.annotator.Run(ctx, textPaths)
	var annotated []string
	for _, r := range results {
		if r.Err == nil {
			annotated = append(annotated, r.Artifact)
		}
	}
	return annotated, nil
}

// Export copies processed notes into the vault. Export is skipped silently
// when no vault directory is configured.
func (p *Pipeline) Export(textPaths []string) ([]string, error) {
	if strings.TrimSpace(p.cfg.Vault.Dir) == "" {
		return nil, nil
	}
	return p.exporter.Export(textPaths)
}

// Sync runs the full pipeline once under the single-instance lock. The
// trigger label is recorded in the journal. When everything is true, each
// stage processes the whole corpus instead of the prior stage's work set.
func (p *Pipeline) Sync(ctx context.Context, trigger string, everything bool) error {
	if err := p.cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "setup", "ensure directories", err)
	}
	lock := flock.New(filepath.Join(p.cfg.Paths.LogDir, "quill.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock", "acquire instance lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock", "another sync is already running", nil)
	}
	defer func() { _ = lock.Unlock() }()

	var runID string
	if p.store != nil {
		if runID, err = p.store.StartRun(ctx, trigger); err != nil {
			p.logger.Warn("journal unavailable", logging.Error(err))
			runID = ""
		}
	}
	runErr := p.syncOnce(ctx, runID, everything)
	if p.store != nil && runID != "" {
		message := ""
		if runErr != nil {
			message = runErr.Error()
		}
		if err := p.store.CompleteRun(ctx, runID, message); err != nil {
			p.logger.Warn("journal update failed", logging.Error(err))
		}
	}
	return runErr
}

func (p *Pipeline) syncOnce(ctx context.Context, runID string, everything bool) error {
	changes, err := p.Pull(ctx)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	if p.store != nil && runID != "" {
		if err := p.store.RecordChanges(ctx, runID, changes); err != nil {
			p.logger.Warn("journal record failed", logging.Error(err))
		}
	}

	var notePaths []string
	if everything {
		notePaths = nil
	} else {
		if len(changes) == 0 {
			p.logger.Info("corpus up to date", logging.String(logging.FieldRunID, runID))
			return nil
		}
		for _, change := range changes {
			notePaths = append(notePaths, change.LocalPath)
		}
		notePaths = filterNoteFiles(notePaths)
		if len(notePaths) == 0 {
			p.logger.Info("no note files changed", logging.String(logging.FieldRunID, runID))
			return nil
		}
	}

	// Each stage consumes only what the prior stage produced. When every
	// item in a stage failed, the run ends there; a nil work set would
	// otherwise widen the next stage to the whole corpus.
	images, err := p.Convert(ctx, notePaths)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if everything {
		images = nil
	} else if len(images) == 0 {
		p.logger.Info("no pages produced, run ends", logging.String(logging.FieldRunID, runID))
		return nil
	}
	texts, err := p.Extract(ctx, images)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	if everything {
		texts = nil
	} else if len(texts) == 0 {
		p.logger.Info("no text extracted, run ends", logging.String(logging.FieldRunID, runID))
		return nil
	}
	annotated, err := p.Annotate(ctx, texts)
	if err != nil {
		return fmt.Errorf("annotate: %w", err)
	}
	if everything {
		annotated = nil
	} else if len(annotated) == 0 {
		p.logger.Info("no notes annotated, run ends", logging.String(logging.FieldRunID, runID))
		return nil
	}
	if _, err := p.Export(annotated); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

func (p *Pipeline) listNotes() ([]string, error) {
	return listByExt(p.cfg.Paths.DataDir, ".note")
}

func (p *Pipeline) listTexts() ([]string, error) {
	return listByExt(p.cfg.Paths.NotesDir, ".txt")
}

func listByExt(dir, ext string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return paths, nil
}

func filterNoteFiles(paths []string) []string {
	var notes []string
	for _, path := range paths {
		if strings.EqualFold(filepath.Ext(path), ".note") {
			notes = append(notes, path)
		}
	}
	return notes
}
