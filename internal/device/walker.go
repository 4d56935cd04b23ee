package device

import (
	"context"
)

// Lister is the slice of the client the walker needs.
type Lister interface {
	List(ctx context.Context, uri string) ([]Entry, error)
}

// Walk enumerates every file below root, descending into each directory whose
// name is not in ignoreDirNames. Traversal order is unspecified; downstream
// consumers index entries by identity, not position.
//
// A failed listing aborts the whole walk: a partial tree could silently read
// as "no notes in this folder" to the reconciler, which would then skip work
// or, worse, treat missing entries as deletions.
func Walk(ctx context.Context, lister Lister, root string, ignoreDirNames []string) ([]Entry, error) {
	ignored := make(map[string]struct{}, len(ignoreDirNames))
	for _, name := range ignoreDirNames {
		ignored[name] = struct{}{}
	}

	var files []Entry
	var descend func(uri string) error
	descend = func(uri string) error {
		entries, err := lister.List(ctx, uri)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDirectory {
				if _, skip := ignored[entry.Name]; skip {
					continue
				}
				if err := descend(entry.URI); err != nil {
					return err
				}
				continue
			}
			files = append(files, entry)
		}
		return nil
	}

	if err := descend(root); err != nil {
		return nil, err
	}
	return files, nil
}
