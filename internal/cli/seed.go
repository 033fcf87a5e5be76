package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"gearbag/internal/mutate"
	"gearbag/internal/web"
)

func newSeedCmd(app *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo fixtures (dev only)",
		Long: "Inserts the demo gear fixtures. Refuses to run against a non-empty " +
			"store, and outside dev mode (GEARBAG_DEV=true) unless --force is given. " +
			"Seeding is not idempotent: running it twice duplicates the fixtures.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !web.LoadConfigFromEnv().Dev && !force {
				return writeErr(cmd, errors.New("seeding is dev-only; set GEARBAG_DEV=true or pass --force"))
			}
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			items, err := st.Items(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(items) > 0 {
				return writeErr(cmd, errors.New("store is not empty; refusing to seed"))
			}
			if err := mutate.SeedDemoData(cmd.Context(), st); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": "seeded"})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Seed even outside dev mode (still requires an empty store)")
	return cmd
}
