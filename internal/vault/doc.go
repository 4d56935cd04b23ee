// Package vault exports processed note text into an Obsidian-style vault,
// converting .txt files to .md and preserving the corpus directory structure.
package vault
