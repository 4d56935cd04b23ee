// Package render rasterizes proprietary note files into one PNG per page by
// invoking an external conversion tool.
package render
