package vault

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"quill/internal/fileutil"
	"quill/internal/logging"
	"quill/internal/services"
)

// Exporter copies processed notes into a folder inside the vault.
type Exporter struct {
	notesDir string
	vaultDir string
	folder   string
	logger   *slog.Logger
}

// New constructs an exporter writing into vaultDir/folder.
func New(notesDir, vaultDir, folder string, logger *slog.Logger) *Exporter {
	if strings.TrimSpace(folder) == "" {
		folder = "Supernote"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Exporter{
		notesDir: notesDir,
		vaultDir: vaultDir,
		folder:   folder,
		logger:   logging.WithComponent(logger, "vault"),
	}
}

// Export copies the given note files into the vault, or every note under the
// notes directory when paths is empty. Text files become markdown; markdown
// files are copied as-is. The vault root must already exist. A file that
// cannot be copied is logged and skipped without affecting the rest.
func (e *Exporter) Export(paths []string) ([]string, error) {
	if _, err := os.Stat(e.vaultDir); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "vault", "export", "vault directory missing", err)
	}
	if len(paths) == 0 {
		var err error
		paths, err = e.listNotes()
		if err != nil {
			return nil, err
		}
	}

	// One bad file must not strand the rest of the batch.
	var exported []string
	for _, path := range paths {
		target, err := e.exportOne(path)
		if err != nil {
			e.logger.Warn("export failed",
				logging.String(logging.FieldStage, "vault"),
				logging.String("note", filepath.Base(path)),
				logging.Error(err))
			continue
		}
		if target != "" {
			exported = append(exported, target)
		}
	}
	return exported, nil
}

func (e *Exporter) exportOne(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".md" {
		return "", nil
	}

	rel, err := filepath.Rel(e.notesDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	if ext == ".txt" {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".md"
	}

	target := filepath.Join(e.vaultDir, e.folder, rel)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "vault", "export", "create vault folder", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "vault", "export", path, err)
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "vault", "export", target, err)
	}
	e.logger.Info("exported note",
		logging.String(logging.FieldStage, "vault"),
		logging.String("note", rel))
	return target, nil
}

func (e *Exporter) listNotes() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(e.notesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".txt" || ext == ".md" {
			notes = append(notes, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "vault", "export", "walk notes", err)
	}
	return notes, nil
}
