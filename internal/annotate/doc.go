// Package annotate enriches extracted note text with metadata: a frontmatter
// tag block and inline [[keyword]] backlinks. Annotation is idempotent; text
// that already carries tags or keywords is left alone.
package annotate
