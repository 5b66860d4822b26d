package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List and select the synced Google calendar",
}

var calendarsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calendars visible to the connected account",
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

		if err := app.reconciler.RefreshCalendars(ctx); err != nil {
			return err
		}

		selected := app.settings.Selected()
		for _, cal := range app.reconciler.Calendars() {
			mark := " "
			if cal.ID == selected {
				mark = "*"
			}
			primary := ""
			if cal.Primary {
				primary = " (primary)"
			}
			fmt.Printf("%s %s%s\n    %s [%s]\n", mark, cal.Summary, primary, cal.ID, cal.AccessRole)
		}
		return nil
	},
}

var calendarsSelectCmd = &cobra.Command{
	Use:   "select <calendar-id>",
	Short: "Choose which calendar to sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.settings.Select(args[0]); err != nil {
			return err
		}
		fmt.Printf("Selected calendar %s\n", args[0])
		return nil
	},
}

func init() {
	calendarsCmd.AddCommand(calendarsListCmd)
	calendarsCmd.AddCommand(calendarsSelectCmd)
	rootCmd.AddCommand(calendarsCmd)
}
