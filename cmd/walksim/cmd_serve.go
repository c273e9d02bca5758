package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/api"
	"github.com/MJE43/lattice-walk-go/internal/auth"
	"github.com/MJE43/lattice-walk-go/internal/store"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr      string
		noStore   bool
		noAuth    bool
		workers   int
		fallbacks string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve estimates, sweeps, traces and saved runs over HTTP",
		Long: `Starts the HTTP API. Endpoints under /api/v1 require
"Authorization: Bearer <token>" when a token is configured through
WALKSIM_TOKEN, the config file or "walksim token set".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.Workers = workers
			}

			token := a.cfg.Server.Token
			if token == "" && !noAuth {
				stored, err := a.tokenStore(fallbacks).Get()
				switch {
				case err == nil:
					token = stored
				case errors.Is(err, auth.ErrNoToken):
				default:
					a.logger.Warn("token_lookup_failed", zap.Error(err))
				}
			}
			if noAuth {
				token = ""
			}
			if token == "" {
				a.logger.Warn("api_auth_disabled")
			}

			var db store.DB
			if !noStore {
				sqlite, err := a.openStore(cmd)
				if err != nil {
					return err
				}
				defer sqlite.Close()
				db = sqlite
			}

			srv := api.NewServer(api.Config{
				DB:         db,
				Sampler:    a.newSampler(),
				Logger:     a.logger,
				Token:      token,
				MaxSamples: a.cfg.Server.MaxSamples,
				Timeout:    a.cfg.Server.Timeout(),
				Precision:  a.cfg.Precision,
			})
			return srv.ListenAndServe(cmd.Context(), a.cfg.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "disable run persistence")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "serve /api/v1 without a bearer token")
	cmd.Flags().StringVar(&fallbacks, "token-file", "", "token file used when no OS keyring is available")
	return cmd
}
