// Package device talks to the note device's embedded HTTP server: listing
// the file tree, walking it recursively, and downloading note files.
//
// The device does not expose a JSON API directly; each folder URI serves an
// HTML page that embeds the listing as `const json = '{...}'`. The client
// extracts and parses that payload and exposes plain descriptors, so nothing
// upstream depends on the quirk.
package device
