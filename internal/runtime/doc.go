// Package runtime implements the flow engine and its seven handlers.
//
// The handler table is fixed: message, thinking, tool_call, tool_result, task_state,
// response, error. Each handler only runs for its own signal types and returns an
// Outcome whose directive tells the engine to skip, emit or halt.
package runtime
