// Package conversation implements the per-conversation store: transcript, scratch
// thoughts, tool-call audit, task records, preferences and the error log.
package conversation
