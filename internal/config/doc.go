// Package config loads and validates the digestwatch configuration: the
// YAML file describing which digests to serve, per-digest cache tuning,
// and the environment conventions (GITHUB_TOKEN, PROJECTS, PORT) carried
// over from the CLI. It also provides a file watcher for hot reload.
package config
