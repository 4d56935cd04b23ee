package identity

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a file path to its logical note identity: the base name
// with directory components, the extension, and any trailing "_<digits>" page
// suffix removed. Unicode is NFC-normalized so composed and decomposed
// spellings of the same title compare equal.
//
//	Normalize("folder/Note_3.png") == Normalize("folder/Note.note") == "Note"
//
// A name without a numeric suffix passes through unchanged (minus extension
// and path); callers must not assume a suffix is present.
func Normalize(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = trimPageSuffix(base)
	return norm.NFC.String(base)
}

// PageIndex reports the trailing "_<digits>" page number of a rasterized page
// file name, or -1 when the name carries no page suffix.
func PageIndex(path string) int {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 || idx == len(base)-1 {
		return -1
	}
	page := 0
	for _, r := range base[idx+1:] {
		if r < '0' || r > '9' {
			return -1
		}
		page = page*10 + int(r-'0')
	}
	return page
}

func trimPageSuffix(base string) string {
	idx := strings.LastIndexByte(base, '_')
	if idx < 0 || idx == len(base)-1 {
		return base
	}
	for _, r := range base[idx+1:] {
		if r < '0' || r > '9' {
			return base
		}
	}
	return base[:idx]
}
