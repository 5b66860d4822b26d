package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask the assistant about the shared schedule",
	Long: `Ask the assistant a question with the current calendar and board in
context. Requires assistant.api_key in the config (or
SOULSYNC_ASSISTANT_API_KEY).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if app.restoreSession(ctx) {
			if err := app.reconciler.Sync(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: sync failed, answering from last known state: %v\n", err)
			}
		}

		tasks, err := app.tasks.Tasks(ctx)
		if err != nil {
			return err
		}

		reply, err := app.assistant.Ask(ctx, strings.Join(args, " "), app.reconciler.Events(), tasks)
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
