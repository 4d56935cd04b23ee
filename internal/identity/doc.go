// Package identity computes stable content fingerprints and logical note
// identities. A logical identity is the stage-independent key that matches a
// rasterized page image back to its source note file and forward to its
// extracted text file, across extension and page-suffix transformations.
package identity
