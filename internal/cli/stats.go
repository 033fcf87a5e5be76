package cli

import (
	"github.com/spf13/cobra"

	"gearbag/internal/view"
)

func newStatsCmd(app *App) *cobra.Command {
	var contextName string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show item, owner and category totals for a context",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			state, err := stateFromFlags(contextName, "items", "", "")
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := st.Items(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			res := view.Derive(view.Snapshot{Items: items, Loaded: true}, identityOr(app, ""), state)
			return writeOut(cmd, app, map[string]any{"data": res.Summary})
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "", "Context (home|explore; default: home when signed in)")
	return cmd
}
