// Package journal persists a history of pipeline runs and the corpus changes
// each run made, backed by SQLite. The journal is observability only; sync
// decisions never depend on it.
package journal
