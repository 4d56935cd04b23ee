// Package pipeline wires the sync stages together: reconcile the corpus
// against the device, rasterize changed notes, extract text, annotate
// metadata, and export to the vault. Each stage consumes only the work set
// the prior stage produced unless a run is explicitly asked to process
// everything.
package pipeline
