// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file and TASKLIST_* environment variables.
// It provides type-safe access to settings needed by the task list, its
// storage backends and the HTTP API.
package config
