package reconcile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"quill/internal/device"
	"quill/internal/fileutil"
	"quill/internal/identity"
	"quill/internal/logging"
	"quill/internal/services"
)

// ChangeKind classifies how a promoted file differs from the prior corpus.
type ChangeKind string

const (
	// Added means no local copy existed before this run.
	Added ChangeKind = "added"
	// Updated means a local copy existed with a different fingerprint.
	Updated ChangeKind = "updated"
)

// ChangeRecord describes one corpus mutation performed by a run. Consumers
// treat a run's records as an unordered set keyed by RelPath.
type ChangeRecord struct {
	RelPath     string
	LocalPath   string
	Kind        ChangeKind
	Fingerprint string
}

// Downloader is the slice of the device client the reconciler needs.
type Downloader interface {
	Download(ctx context.Context, uri, destPath string) error
}

// Reconciler mirrors remote catalog entries into a local corpus directory.
type Reconciler struct {
	downloader  Downloader
	corpusDir   string
	stagingRoot string
	root        string
	logger      *slog.Logger
}

// New constructs a reconciler. root is the device-side catalog root used to
// derive corpus-relative paths from entry URIs.
func New(downloader Downloader, corpusDir, stagingRoot, root string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		downloader:  downloader,
		corpusDir:   corpusDir,
		stagingRoot: stagingRoot,
		root:        root,
		logger:      logging.WithComponent(logger, "reconcile"),
	}
}

// Run downloads every entry into a fresh staging directory, promotes the ones
// whose fingerprint is absent from or differs from the corpus, and returns a
// change record per promotion. An individual download failure skips that file;
// a staging setup failure aborts the run because there is no safe place to
// write.
func (r *Reconciler) Run(ctx context.Context, entries []device.Entry) ([]ChangeRecord, error) {
	if err := os.MkdirAll(r.stagingRoot, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "staging", "create staging root", err)
	}
	stagingDir, err := os.MkdirTemp(r.stagingRoot, "run-")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "staging", "create run directory", err)
	}
	defer os.RemoveAll(stagingDir)

	var changes []ChangeRecord
	for _, entry := range entries {
		record, changed, err := r.reconcileEntry(ctx, entry, stagingDir)
		if err != nil {
			r.logger.Warn("skipping remote file",
				logging.String(logging.FieldStage, "pull"),
				logging.String("path", entry.URI),
				logging.Error(err))
			continue
		}
		if changed {
			changes = append(changes, record)
		}
	}
	return changes, nil
}

func (r *Reconciler) reconcileEntry(ctx context.Context, entry device.Entry, stagingDir string) (ChangeRecord, bool, error) {
	rel := entry.RelativePath(r.root)
	staged := filepath.Join(stagingDir, filepath.FromSlash(rel))
	if err := r.downloader.Download(ctx, entry.URI, staged); err != nil {
		return ChangeRecord{}, false, err
	}

	stagedPrint, err := identity.Fingerprint(staged)
	if err != nil {
		return ChangeRecord{}, false, services.Wrap(services.ErrIdentity, "reconcile", "fingerprint", rel, err)
	}

	local := filepath.Join(r.corpusDir, filepath.FromSlash(rel))
	kind := Added
	if _, statErr := os.Stat(local); statErr == nil {
		localPrint, err := identity.Fingerprint(local)
		if err != nil {
			return ChangeRecord{}, false, services.Wrap(services.ErrIdentity, "reconcile", "fingerprint", local, err)
		}
		if localPrint == stagedPrint {
			os.Remove(staged)
			return ChangeRecord{}, false, nil
		}
		kind = Updated
	}

	if err := fileutil.PromoteFile(staged, local); err != nil {
		return ChangeRecord{}, false, services.Wrap(services.ErrTransient, "reconcile", "promote", rel, err)
	}
	r.logger.Info("promoted file",
		logging.String(logging.FieldStage, "pull"),
		logging.String("path", rel),
		logging.String("change", string(kind)))
	return ChangeRecord{
		RelPath:     rel,
		LocalPath:   local,
		Kind:        kind,
		Fingerprint: stagedPrint,
	}, true, nil
}
