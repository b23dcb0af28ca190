package main

import (
	"os"

	"github.com/aretw0/parley/internal/cli"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat [conversation-id]",
	Short: "Chat with the engine",
	Long: `Starts an interactive conversation on stdin/stdout. The conversation is
persisted after every turn, so passing the same id resumes it.

Use --json for NDJSON input/output, or --message to send one turn and exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		fresh, _ := cmd.Flags().GetBool("fresh")
		message, _ := cmd.Flags().GetString("message")

		opts := cli.ChatOptions{
			JSON:    jsonMode,
			Fresh:   fresh,
			Message: message,
		}
		if len(args) > 0 {
			opts.ConversationID = args[0]
		}
		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		opts.Banner = interactive && message == ""
		opts.Markdown = interactive

		handler := cli.NewChatHandler(opts, os.Stdin, os.Stdout)
		app, err := newApp(cmd, cli.WithToolConfirmation(handler))
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.RunChat(cmd.Context(), app, handler, opts, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().Bool("fresh", false, "Discard the stored conversation before starting")
	chatCmd.Flags().StringP("message", "m", "", "Send a single message and exit")

	// chat is the default command
	rootCmd.RunE = chatCmd.RunE
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}
