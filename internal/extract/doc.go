// Package extract turns rasterized note pages into plain-text files via a
// vision model. Each page image is mapped back to its source note file to
// recover the corpus-relative directory the output text belongs in.
package extract
