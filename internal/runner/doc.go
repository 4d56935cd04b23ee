// Package runner executes batches of independent work items on a bounded
// worker pool. Items never affect each other: a failure or panic in one item
// is captured into its result while the rest of the batch keeps running.
package runner
