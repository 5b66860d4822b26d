package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true)
	statusOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	statusWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	statusDimStyle   = lipgloss.NewStyle().Faint(true)
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection, calendar and board status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		connected := app.restoreSession(ctx)

		fmt.Println(statusTitleStyle.Render("soulsync status"))
		fmt.Println()

		if connected {
			fmt.Printf("Google:   %s\n", statusOKStyle.Render("connected"))
		} else {
			fmt.Printf("Google:   %s %s\n",
				statusWarnStyle.Render("disconnected"),
				statusDimStyle.Render("(run 'soulsync login')"))
		}
		fmt.Printf("Calendar: %s\n", app.settings.Selected())

		tasks, err := app.tasks.Tasks(ctx)
		if err != nil {
			return err
		}
		var todo, doing, done int
		for _, t := range tasks {
			switch t.Status {
			case "todo":
				todo++
			case "inprogress":
				doing++
			case "done":
				done++
			}
		}
		fmt.Printf("Board:    %d todo, %d in progress, %d done\n", todo, doing, done)

		reflections, err := app.store.ListReflections(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Journal:  %d reflections\n", len(reflections))

		plans, err := app.store.ListDinnerPlans(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Dinner:   %d planned evenings\n", len(plans))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
