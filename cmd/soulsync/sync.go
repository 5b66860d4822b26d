package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the remote calendar once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if !app.restoreSession(ctx) {
			return fmt.Errorf("no connected Google session; run 'soulsync login' first")
		}

		if err := app.reconciler.Sync(ctx); err != nil {
			return err
		}

		events := app.reconciler.Events()
		fmt.Printf("Synced %d events from %s\n", len(events), app.settings.Selected())
		for _, ev := range events {
			if ev.Time != "" {
				fmt.Printf("  %s %s  %s\n", ev.Date, ev.Time, ev.Title)
			} else {
				fmt.Printf("  %s        %s\n", ev.Date, ev.Title)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
