// Package github implements the upstream fetch adapter against the GitHub
// GraphQL v4 API. One Fetch call searches every repository in the digest
// concurrently for issues and pull requests updated at or after the given
// cutoff, following cursor pagination, and reports the API's rate limit
// accounting from the last response seen.
package github
