// Package services defines shared error classification used by the pipeline
// stages and external integrations.
//
// Every failure that crosses a stage boundary is tagged with one of the
// sentinel markers below via Wrap, so callers can decide with errors.Is
// whether a failure is retryable (transient), a configuration problem, or a
// per-item defect that should not abort sibling work.
package services
