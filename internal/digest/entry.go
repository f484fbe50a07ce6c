package digest

import "time"

// Entry is one upstream item — an issue or pull request that was updated
// within the fetch window. Entries are unique by ID within a digest; when
// the same ID is seen again with a newer fetch, the new entry replaces the
// old one wholesale.
type Entry struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"` // "issue" | "pull_request"
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Author       string    `json:"author"`
	State        string    `json:"state"` // OPEN | CLOSED | MERGED
	CommentCount int       `json:"comment_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RateLimit is the upstream API's resource accounting as reported in the
// last response. Values are best-effort: the upstream may be queried by
// other processes sharing the same token.
type RateLimit struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Cost      int       `json:"cost"`
	ResetAt   time.Time `json:"reset_at"`
}

// Metadata is everything about a digest other than its entry list. It is
// replaced wholesale on every successful refresh.
type Metadata struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	EntryCount int       `json:"entry_count"` // total matches reported upstream
	RateLimit  RateLimit `json:"rate_limit"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// View is a time-filtered, ordered read of one digest: the latest metadata
// plus the entries updated strictly after the caller's cutoff.
type View struct {
	Meta    Metadata `json:"meta"`
	Entries []Entry  `json:"entries"`
}
