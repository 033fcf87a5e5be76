package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gearbag/internal/mutate"
	"gearbag/internal/view"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List and mutate shared gear",
	}
	cmd.AddCommand(newItemsListCmd(app))
	cmd.AddCommand(newItemsJoinCmd(app))
	cmd.AddCommand(newItemsLeaveCmd(app))
	cmd.AddCommand(newItemsNoteCmd(app))
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	var (
		contextName string
		viewName    string
		category    string
		search      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items through the derived view",
		Example: strings.TrimSpace(`
gearbag items list
gearbag items list --context explore --view owners
gearbag items list --context explore --category Camera
gearbag items list --search cam
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			state, err := stateFromFlags(contextName, viewName, category, search)
			if err != nil {
				return writeErr(cmd, err)
			}

			items, err := st.Items(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			res := view.Derive(view.Snapshot{Items: items, Loaded: true}, identityOr(app, ""), state)
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
	cmd.Flags().StringVar(&contextName, "context", "", "Context (home|explore; default: home when signed in)")
	cmd.Flags().StringVar(&viewName, "view", "items", "View mode (items|categories|owners)")
	cmd.Flags().StringVar(&category, "category", "", "Exact category filter (items view only)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive substring match on name or category")
	return cmd
}

func stateFromFlags(contextName, viewName, category, search string) (view.State, error) {
	st := view.State{SelectedCategory: category, SearchText: search}
	if contextName != "" {
		c, ok := view.ParseContext(contextName)
		if !ok {
			return view.State{}, fmt.Errorf("unknown context %q (want home or explore)", contextName)
		}
		st.Context = c
	}
	if viewName != "" {
		m, ok := view.ParseMode(viewName)
		if !ok {
			return view.State{}, fmt.Errorf("unknown view %q (want items, categories or owners)", viewName)
		}
		st.Mode = m
	}
	return st, nil
}

func newItemsJoinCmd(app *App) *cobra.Command {
	var (
		category   string
		note       string
		idempotent bool
	)
	cmd := &cobra.Command{
		Use:   "join <name>",
		Short: "Add an item to your bag (creates it if nobody shares it yet)",
		Example: strings.TrimSpace(`
gearbag items join "Tripod" --category Camera
gearbag items join "Tripod" --category Camera --note "carbon fiber"
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireIdentity(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			res, err := mutate.Join(cmd.Context(), st, userID, args[0], category, mutate.JoinOptions{
				Note:       note,
				Idempotent: idempotent,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res.Item, "created": res.Created})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category for the item (required when creating)")
	cmd.Flags().StringVar(&note, "note", "", "Personal note to attach while joining")
	cmd.Flags().BoolVar(&idempotent, "idempotent", false, "Use the deterministic-key create (concurrent joins converge on one item)")
	return cmd
}

func newItemsLeaveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave <item-id>",
		Short: "Remove an item from your bag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireIdentity(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			it, err := mutate.Leave(cmd.Context(), st, userID, strings.TrimSpace(args[0]))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": it})
		},
	}
	return cmd
}

func newItemsNoteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <item-id> <text>",
		Short: "Set your personal note on an item (empty text clears it)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireIdentity(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := openStore(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			text := strings.Join(args[1:], " ")
			if err := mutate.Annotate(cmd.Context(), st, userID, strings.TrimSpace(args[0]), text); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"itemId": strings.TrimSpace(args[0]), "note": text}})
		},
	}
	return cmd
}
