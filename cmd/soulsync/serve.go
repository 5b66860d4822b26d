package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/soulsync-app/soulsync/internal/dashboard"
	"github.com/soulsync-app/soulsync/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local server the web client talks to",
	Long: `Start the soulsync server (foreground).

The server exposes:
  - a JSON API for every calendar, task, reflection and dinner mutation
  - a WebSocket endpoint (/ws) broadcasting live snapshots
  - a health check (/health)

On startup the saved Google session is restored silently when possible
and a first calendar sync runs automatically. With refresh_cron set in
the config, the calendar is also resynced on that schedule.

Example usage:
  soulsync serve                    # listen on 127.0.0.1:8787
  soulsync serve --listen :9000     # custom listen address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			app.cfg.Listen = listen
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// Restore the session before the server is marked ready: a token
		// found now is queued and applied once everything is listening,
		// which triggers the first automatic sync.
		if err := app.session.SilentSignIn(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "No saved Google session (%v); run 'soulsync login' to connect\n", err)
		}

		if err := app.settings.Watch(); err != nil {
			return err
		}

		server := dashboard.NewServer(dashboard.Config{
			Addr:       app.cfg.Listen,
			Reconciler: app.reconciler,
			Tasks:      app.tasks,
			Store:      app.store,
			Session:    app.session,
			Settings:   app.settings,
			Assistant:  app.assistant,
			Logger:     logging.New(app.logWriter, "[dashboard] "),
		})
		if err := server.Start(); err != nil {
			return err
		}

		app.session.MarkReady()

		var scheduler *cron.Cron
		if app.cfg.RefreshCron != "" {
			scheduler = cron.New()
			if _, err := scheduler.AddFunc(app.cfg.RefreshCron, func() {
				if err := app.reconciler.Sync(context.Background()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Scheduled sync failed: %v\n", err)
				}
			}); err != nil {
				_ = server.Stop()
				return fmt.Errorf("invalid refresh_cron %q: %w", app.cfg.RefreshCron, err)
			}
			scheduler.Start()
		}

		fmt.Printf("soulsync server started on http://%s\n", server.GetAddr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.GetAddr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		if err := server.Stop(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
