// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config.yaml, a .env file and environment
// variables. It provides type-safe access to the settings needed by the
// webhook server, the background queues and the outbound API clients.
package config
