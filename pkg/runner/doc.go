/*
Package runner drives an interactive conversation: read a line, run it through the
engine, print the reply, repeat.

# Key Components

  - Runner: the read-process-print loop, optionally persisting through a session.Manager.
  - IOHandler: decouples how turns are read and replies shown (text or JSON lines).
  - TextHandler: interactive terminal usage, with an optional markdown renderer.
  - JSONHandler: one JSON object per line, for scripts and host processes.
  - ConfirmationMiddleware: asks the user before each tool call.

# Usage

	r := runner.New(
		runner.WithSessions(sessions),
		runner.WithConversationID("user-1"),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
