package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in with a link code",
		Long: "Starts a link sign-in for the given email and prints the code that " +
			"would normally arrive by mail. Finish with `gearbag login --code <code>`.",
		Example: strings.TrimSpace(`
gearbag login alice@example.com
gearbag login --code 123456
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := authService(app)
			if err != nil {
				return writeErr(cmd, err)
			}

			if code != "" {
				id, err := svc.CompleteLinkSignIn(strings.TrimSpace(code))
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": id})
			}

			if len(args) != 1 {
				return writeErr(cmd, fmt.Errorf("pass an email to start sign-in, or --code to finish one"))
			}
			issued, err := svc.BeginLinkSignIn(strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			// There is no mail delivery here; the code is handed straight back.
			return writeOut(cmd, app, map[string]any{"data": map[string]string{
				"email": strings.TrimSpace(args[0]),
				"code":  issued,
				"next":  "gearbag login --code " + issued,
			}})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Finish a pending sign-in with this code")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := authService(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := svc.SignOut(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": "signed out"})
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := authService(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := svc.Current()
			if id == nil {
				return writeOut(cmd, app, map[string]any{"data": nil, "guest": true})
			}
			return writeOut(cmd, app, map[string]any{"data": id})
		},
	}
}
