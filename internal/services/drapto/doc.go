// Package drapto integrates the Drapto Go library so reassembled videos can
// optionally be re-encoded into a compact delivery file.
package drapto
