// Command quill synchronizes handwritten notes from a networked device into
// a searchable, tagged text corpus and an Obsidian vault.
package main
