package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/digestwatch/digestwatch/internal/config"
	"github.com/digestwatch/digestwatch/internal/digest"
)

const (
	defaultEndpoint = "https://api.github.com/graphql"
	requestTimeout  = 30 * time.Second

	// pageSize is the search page size; maxPages bounds how deep one
	// refresh will paginate for a single repository.
	pageSize = 100
	maxPages = 10
)

// lastRateLimit holds the most recent rate limit block observed on any
// response, process-wide. Best-effort: other processes sharing the token
// consume the same quota without updating this.
var (
	rateLimitMu   sync.Mutex
	lastRateLimit digest.RateLimit
	rateLimitSeen bool
)

// LastRateLimit returns the most recently observed upstream rate limit,
// and whether any has been observed yet.
func LastRateLimit() (digest.RateLimit, bool) {
	rateLimitMu.Lock()
	defer rateLimitMu.Unlock()
	return lastRateLimit, rateLimitSeen
}

func recordRateLimit(rl digest.RateLimit) {
	rateLimitMu.Lock()
	lastRateLimit = rl
	rateLimitSeen = true
	rateLimitMu.Unlock()
}

// authRoundTripper injects the bearer token into every outgoing request.
type authRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "bearer "+t.token)
	return t.base.RoundTrip(req)
}

// Client talks to the GitHub GraphQL API. It implements store.Fetcher.
type Client struct {
	client   *http.Client
	endpoint string
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint points the client at a non-default GraphQL endpoint
// (GitHub Enterprise, test servers).
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// New creates a Client authenticating with token. The HTTP client is built
// once and reused across fetches.
func New(token string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Transport: &authRoundTripper{base: http.DefaultTransport, token: token},
			Timeout:   requestTimeout,
		},
		endpoint: defaultEndpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch retrieves all issues and pull requests updated at or after since
// across every repository in the digest. Repositories are fetched
// concurrently; the first failure cancels the rest and fails the whole
// fetch.
func (c *Client) Fetch(ctx context.Context, opts config.Digest, since time.Time) (digest.Metadata, []digest.Entry, error) {
	repos := make([]string, 0, len(opts.Items))
	for _, item := range opts.Items {
		repo, err := repoFromItem(item)
		if err != nil {
			return digest.Metadata{}, nil, err
		}
		repos = append(repos, repo)
	}

	results := make([][]digest.Entry, len(repos))
	counts := make([]int, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			entries, total, err := c.searchRepo(gctx, repo, since)
			if err != nil {
				return err
			}
			results[i] = entries
			counts[i] = total
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return digest.Metadata{}, nil, fmt.Errorf("github: fetch %q: %w", opts.Filename, err)
	}

	var entries []digest.Entry
	total := 0
	for i := range results {
		entries = append(entries, results[i]...)
		total += counts[i]
	}

	rl, _ := LastRateLimit()
	meta := digest.Metadata{
		Title:      opts.Title,
		EntryCount: total,
		RateLimit:  rl,
		FetchedAt:  time.Now().UTC(),
	}
	if len(opts.Items) > 0 {
		meta.URL = itemURL(opts.Items[0])
	}
	return meta, entries, nil
}

// searchRepo pages through the search results for one repository. total is
// the upstream's overall match count, which can exceed what pagination
// returns when maxPages is hit.
func (c *Client) searchRepo(ctx context.Context, repo string, since time.Time) ([]digest.Entry, int, error) {
	search := fmt.Sprintf("repo:%s updated:>=%s sort:updated-desc", repo, since.UTC().Format("2006-01-02T15:04:05Z"))

	var entries []digest.Entry
	total := 0
	after := ""
	for page := 0; page < maxPages; page++ {
		vars := map[string]any{"query": search, "first": pageSize}
		if after != "" {
			vars["after"] = after
		}

		resp, err := c.post(ctx, graphqlRequest{Query: searchQuery, Variables: vars})
		if err != nil {
			return nil, 0, fmt.Errorf("search %s: %w", repo, err)
		}

		total = resp.Data.Search.IssueCount
		for _, node := range resp.Data.Search.Nodes {
			e, err := entryFromNode(node)
			if err != nil {
				return nil, 0, fmt.Errorf("search %s: %w", repo, err)
			}
			entries = append(entries, e)
		}

		if !resp.Data.Search.PageInfo.HasNextPage {
			break
		}
		after = resp.Data.Search.PageInfo.EndCursor
	}
	return entries, total, nil
}

// post executes one GraphQL call and decodes the response. GraphQL-level
// errors are surfaced as Go errors even when the HTTP status is 200.
func (c *Client) post(ctx context.Context, body graphqlRequest) (*graphqlResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http post: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	var resp graphqlResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}

	if resp.Data.RateLimit.Limit > 0 {
		rl := digest.RateLimit{
			Limit:     resp.Data.RateLimit.Limit,
			Cost:      resp.Data.RateLimit.Cost,
			Remaining: resp.Data.RateLimit.Remaining,
		}
		if t, err := time.Parse(time.RFC3339, resp.Data.RateLimit.ResetAt); err == nil {
			rl.ResetAt = t
		}
		recordRateLimit(rl)
	}
	return &resp, nil
}

// entryFromNode converts one search node into a digest entry.
func entryFromNode(node searchNode) (digest.Entry, error) {
	updated, err := time.Parse(time.RFC3339, node.UpdatedAt)
	if err != nil {
		return digest.Entry{}, fmt.Errorf("entry %s: parse updatedAt %q: %w", node.ID, node.UpdatedAt, err)
	}
	kind := "issue"
	if node.Typename == "PullRequest" {
		kind = "pull_request"
	}
	return digest.Entry{
		ID:           node.ID,
		Kind:         kind,
		Title:        node.Title,
		URL:          node.URL,
		Author:       node.Author.Login,
		State:        node.State,
		CommentCount: node.Comments.TotalCount,
		UpdatedAt:    updated.UTC(),
	}, nil
}

// repoFromItem extracts "owner/name" from a configured item, which may be
// a full URL or already the shorthand form.
func repoFromItem(item string) (string, error) {
	path := item
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
		if j := strings.Index(path, "/"); j >= 0 {
			path = path[j+1:]
		} else {
			path = ""
		}
	}
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("github: item %q is not an owner/repo reference", item)
	}
	return parts[0] + "/" + parts[1], nil
}

// itemURL normalizes a configured item to a browsable URL.
func itemURL(item string) string {
	if strings.Contains(item, "://") {
		return item
	}
	return "https://github.com/" + item
}
