package github

// searchQuery finds issues and pull requests matching a search string,
// newest first, with cursor pagination. The rateLimit block rides along on
// every page so the client always has a current picture of its quota.
const searchQuery = `
query ($query: String!, $first: Int!, $after: String) {
  search(query: $query, type: ISSUE, first: $first, after: $after) {
    issueCount
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      __typename
      ... on Issue {
        id
        title
        url
        state
        updatedAt
        author { login }
        comments { totalCount }
      }
      ... on PullRequest {
        id
        title
        url
        state
        updatedAt
        author { login }
        comments { totalCount }
      }
    }
  }
  rateLimit {
    limit
    cost
    remaining
    resetAt
  }
}`

// graphqlRequest is the POST body for one GraphQL call.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphqlResponse mirrors the slice of the GraphQL schema the search query
// touches.
type graphqlResponse struct {
	Data struct {
		Search struct {
			IssueCount int `json:"issueCount"`
			PageInfo   struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Nodes []searchNode `json:"nodes"`
		} `json:"search"`
		RateLimit struct {
			Limit     int    `json:"limit"`
			Cost      int    `json:"cost"`
			Remaining int    `json:"remaining"`
			ResetAt   string `json:"resetAt"`
		} `json:"rateLimit"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// searchNode is one issue or pull request in a search result page.
type searchNode struct {
	Typename  string `json:"__typename"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	State     string `json:"state"`
	UpdatedAt string `json:"updatedAt"`
	Author    struct {
		Login string `json:"login"`
	} `json:"author"`
	Comments struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
}
