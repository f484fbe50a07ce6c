// Package digest defines the core data model for project activity digests:
// the Entry and Metadata types, the duplicate-free merge of entry sets, and
// the time-window helpers used to turn a relative lookback into an absolute
// "since" cutoff. Everything here is pure — no I/O, no clocks other than
// the ones passed in.
package digest
