// Package textutil cleans up raw text returned by generation models before it
// is written to note files.
package textutil
