// Package memory implements the assistant's long-term vector memory.
//
// Facts are remembered as embeddings and recalled by semantic similarity in
// later turns. The store pairs a flat nearest-neighbor index with an ordered
// document log; position i in the index always corresponds to line i of the
// log.
//
// Architecture:
//   - Index: append-only flat vector index, exhaustive squared-Euclidean
//     search (conversational memory is small, approximate structures are
//     not worth their complexity here)
//   - Store: Remember/Recall over the index + document log, with dual-file
//     persistence under a single directory
//   - Embedder: text-to-vector conversion, see memory/embedder
//
// Persistence is deliberately forgiving: a missing, truncated, or mismatched
// file pair resets the store to empty rather than failing. Losing memories is
// acceptable; refusing to start is not.
//
// The chromem subpackage provides an alternate recall bank backed by an
// embedded chromem-go database for deployments that prefer a managed store.
package memory
