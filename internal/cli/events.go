package cli

import (
	"github.com/spf13/cobra"
)

func newEventsCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the audit event log",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events (oldest-first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			evs, err := st.Events(cmd.Context(), limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": evs})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 200, "Max events to return (0 = all)")

	cmd.AddCommand(listCmd)
	return cmd
}
