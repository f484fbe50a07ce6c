package digest

import "sort"

// Order is the sort direction for merged entries. Index-style pages want
// the newest activity on top; chronological multi-day digests read oldest
// to newest. The direction is a caller choice, not a property of the data.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// OrderFromString maps a config value to an Order. Empty means NewestFirst.
func OrderFromString(s string) (Order, bool) {
	switch s {
	case "", "newest_first":
		return NewestFirst, true
	case "oldest_first":
		return OldestFirst, true
	default:
		return NewestFirst, false
	}
}

// Merge unions existing and incoming into a set unique by ID, with the
// incoming entry winning on collision, sorted by UpdatedAt per order.
// Both inputs must be internally unique by ID; neither needs to be sorted.
// Merge never drops an ID present in either input, so re-fetching an
// overlapping window can only add or refresh entries, never lose ones
// outside the new window.
func Merge(existing, incoming []Entry, order Order) []Entry {
	byID := make(map[string]Entry, len(existing)+len(incoming))
	for _, e := range existing {
		byID[e.ID] = e
	}
	for _, e := range incoming {
		byID[e.ID] = e
	}

	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sortEntries(out, order)
	return out
}

// sortEntries orders entries by UpdatedAt per order, breaking timestamp
// ties by ID so the output is deterministic.
func sortEntries(entries []Entry, order Order) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if order == NewestFirst {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
