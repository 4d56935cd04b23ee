// Package reconcile synchronizes the local note corpus with a remote catalog.
// Remote files are downloaded into a per-run staging directory, compared by
// fingerprint against their local counterparts, and promoted atomically when
// they are new or changed. The staging directory is removed wholesale at the
// end of every run.
package reconcile
