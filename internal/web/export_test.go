package web

import "time"

// SetClock overrides the handler's clock for deterministic tests.
func SetClock(h *Handler, now func() time.Time) { h.now = now }
