// Package web implements the HTML-facing HTTP layer.
//
// New(source, rateLimit) returns an http.Handler that serves:
//
//	GET /               — index: all configured digests + upstream quota
//	GET /d/{filename}   — one digest page; ?since=<lookback> narrows it
//	GET /healthz        — JSON liveness payload
//
// Digest pages reject a malformed ?since= with 400 before touching any
// cache state, and return 404 for filenames that were never configured.
// Templates are compiled once at startup from the embedded templates/
// directory.
package web
