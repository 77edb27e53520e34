// Package treestore adapts a local OSTree repository to the engine's
// TreeStore interface by driving the ostree command-line tool. The
// repository layout, object storage, and pull transport stay owned by
// ostree; this package only shells out and parses output.
package treestore
