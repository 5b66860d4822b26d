package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
	"golang.org/x/oauth2"

	"github.com/soulsync-app/soulsync/internal/types"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Connect a Google account",
	Long: `Connect a Google account for calendar and task sync.

Opens the Google consent page in a browser (or prints the URL when no
browser is available), then prompts for the authorization code. Consent
is always re-requested so scopes granted incrementally are picked up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		if app.cfg.Google.ClientID == "" || app.cfg.Google.ClientSecret == "" {
			return fmt.Errorf("google.client_id and google.client_secret must be set in the config (or SOULSYNC_GOOGLE_CLIENT_ID / SOULSYNC_GOOGLE_CLIENT_SECRET)")
		}

		url := app.session.AuthURL(uuid.NewString())
		if err := openBrowser(url); err != nil {
			fmt.Println("Open this URL in a browser to continue:")
		} else {
			fmt.Println("A browser window should have opened. If not, open this URL:")
		}
		fmt.Printf("\n  %s\n\n", url)

		var code string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Authorization code").
				Description("Paste the code Google shows after you approve access").
				Value(&code),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if code == "" {
			return fmt.Errorf("no authorization code entered")
		}

		app.session.MarkReady()
		ctx := cmd.Context()
		if err := app.session.CompleteSignIn(ctx, code); err != nil {
			return err
		}

		// Resolve the account's identity from the primary calendar entry.
		if token, err := app.session.Credential(ctx); err == nil {
			src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
			if svc, err := calendar.NewService(ctx, option.WithTokenSource(src)); err == nil {
				if cal, err := svc.CalendarList.Get("primary").Do(); err == nil {
					app.session.SetIdentity(types.Identity{
						UserID:      cal.Id,
						DisplayName: cal.Summary,
						Email:       cal.Id,
					})
				}
			}
		}

		fmt.Println("Google account connected.")
		if id := app.session.Identity(); id != nil {
			fmt.Printf("Signed in as %s\n", id.Email)
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Disconnect the Google account",
	Long: `Disconnect the Google account and forget the saved credential.

Local data (tasks, reflections, dinner plans) is kept. Events already
synced disappear from the published view on the next serve start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		app.session.SignOut()
		app.reconciler.Reset()
		fmt.Println("Signed out.")
		return nil
	},
}

// openBrowser best-effort opens url in the default browser.
func openBrowser(url string) error {
	var name string
	var args []string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	default:
		name = "xdg-open"
	}
	return exec.Command(name, append(args, url)...).Start()
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
