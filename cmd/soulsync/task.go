package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulsync-app/soulsync/internal/bridge"
	"github.com/soulsync-app/soulsync/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the shared task board",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a task to the board",
	Long: `Add a task to the shared board.

While a Google account is connected, the task is created in Google Tasks
first and the board entry records the remote id; a remote failure means
no task is created at all. While disconnected the task is local-only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		app.restoreSession(ctx)

		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			owner = types.OwnerShared
		}

		task, err := app.tasks.AddTask(ctx, types.Task{
			Content:   args[0],
			Status:    types.StatusTodo,
			Owner:     owner,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}

		if task.ExternalTaskID != "" {
			fmt.Printf("Added %s (mirrored to Google Tasks)\n", task.ID)
		} else {
			fmt.Printf("Added %s (local only)\n", task.ID)
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the board in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		tasks, err := app.tasks.Tasks(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("Board is empty.")
			return nil
		}

		for _, t := range tasks {
			mark := " "
			switch t.Status {
			case types.StatusInProgress:
				mark = "~"
			case types.StatusDone:
				mark = "x"
			}
			line := fmt.Sprintf("[%s] %-40s %s  %s", mark, t.Content, t.Owner, t.ID)
			if t.Reminder != nil {
				line += "  (remind " + t.Reminder.Format("Jan 2 15:04") + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <todo|inprogress|done>",
	Short: "Move a task between columns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		app.restoreSession(ctx)

		status := types.TaskStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", args[1])
		}
		if _, err := app.tasks.SetStatus(ctx, args[0], status); err != nil {
			return err
		}
		fmt.Printf("Task %s -> %s\n", args[0], status)
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		app.restoreSession(ctx)

		if err := app.tasks.DeleteTask(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <id> <up|down>",
	Short: "Swap a task with its neighbor in display order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.tasks.ReorderTask(cmd.Context(), args[0], bridge.Direction(args[1])); err != nil {
			return err
		}
		fmt.Printf("Moved %s %s\n", args[0], args[1])
		return nil
	},
}

var taskRemindCmd = &cobra.Command{
	Use:   "remind <id> [when...]",
	Short: "Set or clear a natural-language reminder",
	Long: `Set a reminder using a natural-language time ("tomorrow 9am",
"friday evening"). With no time given, the reminder is cleared.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		phrase := ""
		if len(args) > 1 {
			for _, a := range args[1:] {
				if phrase != "" {
					phrase += " "
				}
				phrase += a
			}
		}

		task, err := app.tasks.SetReminder(cmd.Context(), args[0], phrase)
		if err != nil {
			return err
		}
		if task.Reminder == nil {
			fmt.Printf("Reminder cleared for %s\n", args[0])
		} else {
			fmt.Printf("Reminder for %s at %s\n", args[0], task.Reminder.Format("Mon Jan 2 15:04"))
		}
		return nil
	},
}

func init() {
	taskAddCmd.Flags().String("owner", "", "Task owner (default: Shared)")
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskMoveCmd)
	taskCmd.AddCommand(taskRemindCmd)
	rootCmd.AddCommand(taskCmd)
}
