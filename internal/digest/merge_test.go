package digest

import (
	"testing"
	"time"
)

func entry(id string, updated time.Time) Entry {
	return Entry{ID: id, Title: "entry " + id, UpdatedAt: updated}
}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func assertIDs(t *testing.T, got []Entry, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids: got %v, want %v", ids(got), want)
	}
	for i, e := range got {
		if e.ID != want[i] {
			t.Fatalf("ids: got %v, want %v", ids(got), want)
		}
	}
}

func TestMerge_Disjoint(t *testing.T) {
	existing := []Entry{entry("1", day(5))}
	incoming := []Entry{entry("2", day(7))}

	got := Merge(existing, incoming, NewestFirst)
	assertIDs(t, got, "2", "1")
}

func TestMerge_IncomingWinsOnCollision(t *testing.T) {
	existing := []Entry{entry("1", day(5))}
	incoming := []Entry{entry("1", day(6))}

	got := Merge(existing, incoming, NewestFirst)
	assertIDs(t, got, "1")
	if !got[0].UpdatedAt.Equal(day(6)) {
		t.Errorf("UpdatedAt: got %v, want %v", got[0].UpdatedAt, day(6))
	}
}

func TestMerge_UniqueByID(t *testing.T) {
	existing := []Entry{entry("1", day(1)), entry("2", day(2)), entry("3", day(3))}
	incoming := []Entry{entry("2", day(4)), entry("3", day(5)), entry("4", day(6))}

	got := Merge(existing, incoming, NewestFirst)
	seen := make(map[string]bool)
	for _, e := range got {
		if seen[e.ID] {
			t.Fatalf("duplicate id %q in %v", e.ID, ids(got))
		}
		seen[e.ID] = true
	}
	if len(got) != 4 {
		t.Errorf("len: got %d, want 4", len(got))
	}
}

func TestMerge_Idempotent(t *testing.T) {
	x := []Entry{entry("b", day(2)), entry("a", day(1)), entry("c", day(3))}

	got := Merge(x, x, NewestFirst)
	assertIDs(t, got, "c", "b", "a")
}

func TestMerge_MonotonicCoverage(t *testing.T) {
	// Merging a narrower window must never lose previously known entries.
	existing := []Entry{entry("old-1", day(1)), entry("old-2", day(2))}
	incoming := []Entry{entry("new-1", day(9))}

	got := Merge(existing, incoming, NewestFirst)
	present := make(map[string]bool)
	for _, e := range got {
		present[e.ID] = true
	}
	for _, want := range []string{"old-1", "old-2", "new-1"} {
		if !present[want] {
			t.Errorf("id %q missing from merge result %v", want, ids(got))
		}
	}
}

func TestMerge_Orders(t *testing.T) {
	existing := []Entry{entry("1", day(5)), entry("2", day(7))}

	assertIDs(t, Merge(existing, nil, NewestFirst), "2", "1")
	assertIDs(t, Merge(existing, nil, OldestFirst), "1", "2")
}

func TestMerge_TimestampTieBreaksByID(t *testing.T) {
	existing := []Entry{entry("b", day(5)), entry("a", day(5))}

	assertIDs(t, Merge(existing, nil, NewestFirst), "a", "b")
	assertIDs(t, Merge(existing, nil, OldestFirst), "a", "b")
}

func TestMerge_EmptyInputs(t *testing.T) {
	if got := Merge(nil, nil, NewestFirst); len(got) != 0 {
		t.Errorf("merge of nothing: got %v", ids(got))
	}
	got := Merge(nil, []Entry{entry("1", day(1))}, NewestFirst)
	assertIDs(t, got, "1")
}

func TestOrderFromString(t *testing.T) {
	tests := []struct {
		in    string
		want  Order
		valid bool
	}{
		{"", NewestFirst, true},
		{"newest_first", NewestFirst, true},
		{"oldest_first", OldestFirst, true},
		{"sideways", NewestFirst, false},
	}
	for _, tt := range tests {
		got, ok := OrderFromString(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("OrderFromString(%q): got (%v, %v), want (%v, %v)",
				tt.in, got, ok, tt.want, tt.valid)
		}
	}
}
