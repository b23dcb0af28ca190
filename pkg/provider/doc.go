// Package provider contains ports.Provider implementations that need no network:
// a function adapter, a scripted provider for tests and demos, and an offline
// rule-based agent used by the CLI.
package provider
