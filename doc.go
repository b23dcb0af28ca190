/*
Package parley is a signal-driven conversation engine for LLM agents.

A user utterance enters the engine as a user_message signal. A fixed chain of
handlers (message, thinking, tool_call, tool_result, task_state, response, error)
turns it into a bounded sequence of signals: the provider may think, call tools and
observe their results, and the run always ends in a response, even on failure.

	eng := parley.New(
		parley.WithProvider(myProvider),
		parley.WithBuiltinTools(),
		parley.WithMaxSteps(16),
	)
	state := conversation.NewWithSystemPrompt("", "You are a helpful assistant.")
	res, err := eng.Send(ctx, state, "Calculate 40+2")
	// res.Signal is the final response, res.State the updated conversation.

Conversations are plain values. Persist them with a ports.StateStore adapter and
serialize access with session.Manager when several goroutines share one.
*/
package parley
