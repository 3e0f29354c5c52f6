// Package ragsync keeps a retrieval index in sync with a directory tree of
// heterogeneous documents. It scans the tree incrementally, converts each
// file to normalized markdown (via an external conversion service or a local
// HTML pipeline), deduplicates content at two stages, enriches documents with
// generated image captions, and reconciles the resulting corpus against a
// remote retrieval index.
//
// This package contains domain types, interfaces, and the pure content
// algorithms (change detection, dedup election, markdown normalization,
// caption quality filtering) following Ben Johnson's Standard Package Layout.
// Implementations live in subdirectories named after their primary dependency
// (e.g., docling/, gemini/, lightrag/, fs/, yaml/).
package ragsync
