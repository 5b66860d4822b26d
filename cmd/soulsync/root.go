package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/soulsync-app/soulsync/internal/assistant"
	"github.com/soulsync-app/soulsync/internal/bridge"
	"github.com/soulsync-app/soulsync/internal/config"
	"github.com/soulsync-app/soulsync/internal/gcal"
	"github.com/soulsync-app/soulsync/internal/logging"
	"github.com/soulsync-app/soulsync/internal/reconcile"
	"github.com/soulsync-app/soulsync/internal/session"
	"github.com/soulsync-app/soulsync/internal/settings"
	"github.com/soulsync-app/soulsync/internal/store"
)

var (
	flagConfig string
	flagQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "soulsync",
	Short: "Shared calendar and task board for two",
	Long: `soulsync keeps a couple's shared calendar, task board, reflections and
dinner plans in one place, synchronized with Google Calendar and Google
Tasks.

Run 'soulsync login' once to connect a Google account, then 'soulsync
serve' to start the local server the web client talks to. Most data is
also reachable from the command line (task, sync, status, calendars).`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: ~/.config/soulsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress component logs on stderr")
}

// app bundles the long-lived components a command needs. Commands that
// only read config can skip newApp and call config.Load directly.
type app struct {
	cfg        *config.Config
	logWriter  io.Writer
	store      *store.Store
	session    *session.Controller
	settings   *settings.Store
	adapter    *gcal.Adapter
	reconciler *reconcile.Reconciler
	tasks      *bridge.Bridge
	assistant  *assistant.Assistant
}

// newApp loads config and wires the full component graph. The session is
// left disconnected; call restoreSession to connect from the saved token.
func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logWriter := logging.Writer(logging.Options{File: cfg.LogFile, Quiet: flagQuiet})

	st, err := store.Open(cfg.DatabasePath(), logging.New(logWriter, "[store] "))
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Options{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		TokenPath:    cfg.TokenPath(),
		Logger:       logging.New(logWriter, "[session] "),
	})

	sel, err := settings.Open(cfg.SettingsPath(), cfg.Google.DefaultCalendarID, logging.New(logWriter, "[settings] "))
	if err != nil {
		st.Close()
		return nil, err
	}

	adapter := gcal.New(cfg.Google.WindowDays, logging.New(logWriter, "[gcal] "))
	rec := reconcile.New(adapter, sess, sel, st, logging.New(logWriter, "[sync] "))
	tasks := bridge.New(st, sess, adapter, logging.New(logWriter, "[tasks] "))
	asst := assistant.New(assistant.Options{
		APIKey:   cfg.Assistant.APIKey,
		Model:    cfg.Assistant.Model,
		PartnerA: cfg.Partners[0],
		PartnerB: cfg.Partners[1],
		Logger:   logging.New(logWriter, "[assistant] "),
	}, st)

	return &app{
		cfg:        cfg,
		logWriter:  logWriter,
		store:      st,
		session:    sess,
		settings:   sel,
		adapter:    adapter,
		reconciler: rec,
		tasks:      tasks,
		assistant:  asst,
	}, nil
}

// restoreSession attempts a silent sign-in from the persisted token.
// Returns false when no usable credential exists; that is not an error
// for commands that work offline.
func (a *app) restoreSession(ctx context.Context) bool {
	a.session.MarkReady()
	if err := a.session.SilentSignIn(ctx); err != nil {
		return false
	}
	return true
}

func (a *app) Close() {
	if err := a.settings.Close(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: settings close: %v\n", err)
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Warning: store close: %v\n", err)
	}
}
