package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/digestwatch/digestwatch/internal/config"
)

// graphqlStub is a canned GraphQL endpoint. Each request pops the next
// queued response body; requests beyond the queue get a GraphQL error.
type graphqlStub struct {
	mu        sync.Mutex
	responses []string
	requests  []stubRequest
}

type stubRequest struct {
	auth   string
	query  string // the "query" variable (search string)
	after  string
	isPage bool
}

func (st *graphqlStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		st.mu.Lock()
		rec := stubRequest{auth: r.Header.Get("Authorization")}
		if q, ok := req.Variables["query"].(string); ok {
			rec.query = q
		}
		if a, ok := req.Variables["after"].(string); ok {
			rec.after = a
			rec.isPage = true
		}
		st.requests = append(st.requests, rec)

		body := `{"errors":[{"message":"queue exhausted"}]}`
		if len(st.responses) > 0 {
			body = st.responses[0]
			st.responses = st.responses[1:]
		}
		st.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body) //nolint:errcheck
	}
}

func (st *graphqlStub) recorded() []stubRequest {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]stubRequest(nil), st.requests...)
}

func page(hasNext bool, cursor string, nodes ...string) string {
	return fmt.Sprintf(`{"data":{
		"search":{
			"issueCount":%d,
			"pageInfo":{"hasNextPage":%t,"endCursor":%q},
			"nodes":[%s]
		},
		"rateLimit":{"limit":5000,"cost":1,"remaining":4321,"resetAt":"2024-01-10T16:00:00Z"}
	}}`, len(nodes), hasNext, cursor, strings.Join(nodes, ","))
}

func issueNode(id, title, updated string) string {
	return fmt.Sprintf(`{"__typename":"Issue","id":%q,"title":%q,"url":"https://github.com/acme/widgets/issues/1",
		"state":"OPEN","updatedAt":%q,"author":{"login":"alice"},"comments":{"totalCount":3}}`,
		id, title, updated)
}

func prNode(id, updated string) string {
	return fmt.Sprintf(`{"__typename":"PullRequest","id":%q,"title":"a pr","url":"https://github.com/acme/widgets/pull/2",
		"state":"MERGED","updatedAt":%q,"author":{"login":"bob"},"comments":{"totalCount":0}}`,
		id, updated)
}

func newTestClient(t *testing.T, stub *graphqlStub) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return New("test-token", WithEndpoint(srv.URL))
}

func widgetsDigest() config.Digest {
	return config.Digest{
		Title:    "Widgets",
		Filename: "widgets.html",
		Items:    []string{"acme/widgets"},
	}
}

var since = time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC)

func TestFetch_SinglePage(t *testing.T) {
	stub := &graphqlStub{responses: []string{
		page(false, "", issueNode("I_1", "an issue", "2024-01-05T00:00:00Z"), prNode("PR_1", "2024-01-06T12:00:00Z")),
	}}
	c := newTestClient(t, stub)

	meta, entries, err := c.Fetch(context.Background(), widgetsDigest(), since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	issue := entries[0]
	if issue.ID != "I_1" || issue.Kind != "issue" || issue.Author != "alice" || issue.CommentCount != 3 {
		t.Errorf("issue entry: got %+v", issue)
	}
	if !issue.UpdatedAt.Equal(time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("issue UpdatedAt: got %v", issue.UpdatedAt)
	}
	if entries[1].Kind != "pull_request" || entries[1].State != "MERGED" {
		t.Errorf("pr entry: got %+v", entries[1])
	}

	if meta.Title != "Widgets" || meta.EntryCount != 2 {
		t.Errorf("metadata: got %+v", meta)
	}
	if meta.URL != "https://github.com/acme/widgets" {
		t.Errorf("metadata URL: got %q", meta.URL)
	}
	if meta.RateLimit.Remaining != 4321 {
		t.Errorf("rate limit: got %+v", meta.RateLimit)
	}
}

func TestFetch_SendsAuthAndSinceQualifier(t *testing.T) {
	stub := &graphqlStub{responses: []string{page(false, "")}}
	c := newTestClient(t, stub)

	if _, _, err := c.Fetch(context.Background(), widgetsDigest(), since); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	reqs := stub.recorded()
	if len(reqs) != 1 {
		t.Fatalf("requests: got %d, want 1", len(reqs))
	}
	if reqs[0].auth != "bearer test-token" {
		t.Errorf("auth header: got %q", reqs[0].auth)
	}
	for _, want := range []string{"repo:acme/widgets", "updated:>=2024-01-03T00:00:00Z", "sort:updated-desc"} {
		if !strings.Contains(reqs[0].query, want) {
			t.Errorf("search query %q missing %q", reqs[0].query, want)
		}
	}
}

func TestFetch_Pagination(t *testing.T) {
	stub := &graphqlStub{responses: []string{
		page(true, "CURSOR-1", issueNode("I_1", "first", "2024-01-05T00:00:00Z")),
		page(false, "", issueNode("I_2", "second", "2024-01-04T00:00:00Z")),
	}}
	c := newTestClient(t, stub)

	_, entries, err := c.Fetch(context.Background(), widgetsDigest(), since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}

	reqs := stub.recorded()
	if len(reqs) != 2 {
		t.Fatalf("requests: got %d, want 2", len(reqs))
	}
	if reqs[0].isPage {
		t.Error("first request should not carry a cursor")
	}
	if !reqs[1].isPage || reqs[1].after != "CURSOR-1" {
		t.Errorf("second request cursor: got %+v", reqs[1])
	}
}

func TestFetch_MultipleItems(t *testing.T) {
	stub := &graphqlStub{responses: []string{
		page(false, "", issueNode("I_1", "widgets issue", "2024-01-05T00:00:00Z")),
		page(false, "", issueNode("I_2", "gadgets issue", "2024-01-06T00:00:00Z")),
	}}
	c := newTestClient(t, stub)

	opts := widgetsDigest()
	opts.Items = []string{"acme/widgets", "https://github.com/acme/gadgets"}

	_, entries, err := c.Fetch(context.Background(), opts, since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries: got %d, want 2", len(entries))
	}

	// Both repos must have been searched, in either order.
	repos := map[string]bool{}
	for _, r := range stub.recorded() {
		for _, repo := range []string{"acme/widgets", "acme/gadgets"} {
			if strings.Contains(r.query, "repo:"+repo) {
				repos[repo] = true
			}
		}
	}
	if len(repos) != 2 {
		t.Errorf("searched repos: got %v", repos)
	}
}

func TestFetch_GraphQLError(t *testing.T) {
	stub := &graphqlStub{responses: []string{`{"errors":[{"message":"rate limited"}]}`}}
	c := newTestClient(t, stub)

	_, _, err := c.Fetch(context.Background(), widgetsDigest(), since)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err: got %v, want graphql error", err)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New("test-token", WithEndpoint(srv.URL))

	_, _, err := c.Fetch(context.Background(), widgetsDigest(), since)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err: got %v, want status error", err)
	}
}

func TestFetch_BadItem(t *testing.T) {
	c := New("test-token")
	opts := widgetsDigest()
	opts.Items = []string{"not-a-repo"}

	if _, _, err := c.Fetch(context.Background(), opts, since); err == nil {
		t.Fatal("expected error for malformed item")
	}
}

func TestLastRateLimit_UpdatedByFetch(t *testing.T) {
	stub := &graphqlStub{responses: []string{page(false, "")}}
	c := newTestClient(t, stub)

	if _, _, err := c.Fetch(context.Background(), widgetsDigest(), since); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	rl, ok := LastRateLimit()
	if !ok {
		t.Fatal("LastRateLimit: no observation recorded")
	}
	if rl.Limit != 5000 || rl.Remaining != 4321 || rl.Cost != 1 {
		t.Errorf("rate limit: got %+v", rl)
	}
	if !rl.ResetAt.Equal(time.Date(2024, time.January, 10, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("ResetAt: got %v", rl.ResetAt)
	}
}

func TestRepoFromItem(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"acme/widgets", "acme/widgets", false},
		{"https://github.com/acme/widgets", "acme/widgets", false},
		{"https://github.com/acme/widgets/", "acme/widgets", false},
		{"widgets", "", true},
		{"a/b/c", "", true},
		{"https://github.com/", "", true},
	}
	for _, tt := range tests {
		got, err := repoFromItem(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("repoFromItem(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("repoFromItem(%q): got (%q, %v), want %q", tt.in, got, err, tt.want)
		}
	}
}
