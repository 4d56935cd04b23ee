package device

import "strings"

// Entry is a remote file descriptor produced by a folder listing. Entries are
// ephemeral; the reconciler discards them once change records are computed.
type Entry struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	IsDirectory bool   `json:"isDirectory"`
}

type listingPayload struct {
	FileList []Entry `json:"fileList"`
}

// RelativePath returns the entry's path below the device root, without a
// leading slash. An entry outside the root returns its URI unchanged.
func (e Entry) RelativePath(root string) string {
	uri := "/" + strings.TrimLeft(e.URI, "/")
	root = "/" + strings.Trim(root, "/")
	if rel, ok := strings.CutPrefix(uri, root+"/"); ok {
		return rel
	}
	return strings.TrimLeft(e.URI, "/")
}
