// Package store implements the per-digest refresh cache and the registry
// that maps configured digest filenames to cache instances.
//
// Each Store owns one digest's merged entry set and decides, on every
// read, whether the cached state is cold (force a full-window refresh),
// due (incremental refresh since the last one), or fresh (serve as-is).
// A single mutex per Store serializes reads and refreshes for that digest,
// so at most one upstream fetch is ever in flight per digest and no read
// observes a refresh in a torn state. Different digests proceed
// independently.
//
// The cache is memory-resident only; nothing survives a restart.
package store
