package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gearbag/internal/auth"
	"gearbag/internal/format"
	"gearbag/internal/store"
	"gearbag/internal/tui"
	"gearbag/internal/web"
)

type App struct {
	Dir        string
	Remote     string
	UserID     string
	PrettyJSON bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "gearbag",
		Short:        "Shared gear inventory CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  gearbag

  # Scriptable commands
  gearbag items list --context explore
  gearbag items join "Tripod" --category Camera

  # Run the shared feed server
  gearbag serve
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("GEARBAG_DIR", ""), "Path to the data dir (default: ~/.gearbag)")
	cmd.PersistentFlags().StringVar(&app.Remote, "remote", envOr("GEARBAG_REMOTE", ""), "Base URL of a gearbag serve instance (default: local store)")
	cmd.PersistentFlags().StringVar(&app.UserID, "user", "", "User id (overrides the signed-in identity)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newServeCmd(app))

	return cmd
}

func runTUI(app *App) error {
	st, err := openStore(app)
	if err != nil {
		return err
	}
	defer st.Close()

	log := tuiLogger(app)
	defer func() { _ = log.Sync() }()
	return tui.Run(st, identityOr(app, ""), web.LoadConfigFromEnv().Dev, log)
}

// tuiLogger logs to a file under the data dir; writing to stderr would
// corrupt the alt screen.
func tuiLogger(app *App) *zap.Logger {
	dir, err := dataDir(app)
	if err != nil {
		return zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dir, "tui.log")}
	cfg.ErrorOutputPaths = cfg.OutputPaths
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func dataDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w (pass --dir or set GEARBAG_DIR)", err)
	}
	return filepath.Join(home, ".gearbag"), nil
}

// openStore picks the backend: a remote feed server when --remote is set,
// otherwise the local store under the data dir.
func openStore(app *App) (store.Store, error) {
	if app.Remote != "" {
		return web.NewClient(app.Remote), nil
	}
	dir, err := dataDir(app)
	if err != nil {
		return nil, err
	}
	return store.OpenSQLite(dir, zap.NewNop())
}

func authService(app *App) (*auth.Service, error) {
	dir, err := dataDir(app)
	if err != nil {
		return nil, err
	}
	return auth.NewService(dir)
}

// identityOr returns the effective user id: the --user override, then the
// signed-in identity, then fallback ("" means guest).
func identityOr(app *App, fallback string) string {
	if app.UserID != "" {
		return app.UserID
	}
	if svc, err := authService(app); err == nil {
		if id := svc.Current(); id != nil {
			return id.UserID
		}
	}
	return fallback
}

func requireIdentity(app *App) (string, error) {
	if id := identityOr(app, ""); id != "" {
		return id, nil
	}
	return "", errors.New("not signed in; run `gearbag login <email>` (or pass --user)")
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
