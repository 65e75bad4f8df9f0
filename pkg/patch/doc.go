// Package patch provides helpers for splitting unified-diff style patch files at a hunk boundary.
//
// A split keeps the two header lines of the input and partitions the remaining lines at the
// first line that starts with a marker prefix, producing an "ours" document (everything before
// the marker) and an "existing" document (the marker line onwards). The package can run a split
// against the filesystem or against an in-memory document store, which makes it straightforward
// to embed in other tools and tests.
package patch
