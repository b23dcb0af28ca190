// Package tools holds the tool registry and the executor used by the tool_call stage.
//
// Execute never lets a tool failure escape: returned errors, panics and timeouts are
// captured in Result.Err and surface as {"error": message} via Result.Output.
package tools
