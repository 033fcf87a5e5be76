package cli

import (
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gearbag/internal/store"
	"gearbag/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shared feed server",
		Long: "Serves the gear store over HTTP: a websocket snapshot feed plus " +
			"single-document operations. Clients connect with --remote. " +
			"Configured via GEARBAG_ADDR, GEARBAG_DATA_DIR and GEARBAG_DEV.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := web.LoadConfigFromEnv()

			log, err := serverLogger(cfg.Dev)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = log.Sync() }()

			dir := cfg.DataDir
			if dir == "" {
				dir, err = dataDir(app)
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			st, err := store.OpenSQLite(dir, log)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			srv := web.NewServer(st, log)
			log.Info("listening",
				zap.String("addr", cfg.Addr),
				zap.String("dir", dir),
				zap.Bool("dev", cfg.Dev))
			return http.ListenAndServe(cfg.Addr, srv.Handler())
		},
	}
	return cmd
}

func serverLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
