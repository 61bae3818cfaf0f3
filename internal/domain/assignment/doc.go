// Package assignment implements the pure assignment rules: capability
// matching, the active-task ceiling and least-loaded candidate selection.
//
// Nothing here performs I/O. Callers fetch the candidate pool and loads inside
// their transaction and pass them in, which keeps decisions deterministic for
// a given snapshot.
package assignment
