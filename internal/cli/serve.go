package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"guild_ledger/internal/api"
	"guild_ledger/internal/app"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd serves the ledger commands over HTTP until interrupted.
func ServeCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			origins, _ := cmd.Flags().GetStringSlice("cors-origin")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(cmd, load, func(a *app.App) error {
				srv := &http.Server{
					Addr:              addr,
					Handler:           api.NewRouter(api.NewHandler(a.Service, a.Metrics), origins),
					ReadHeaderTimeout: 10 * time.Second,
				}
				return serve(ctx, srv)
			})
		},
	}
	cmd.Flags().String("addr", app.GetEnvWithDefault("LISTEN_ADDR", ":8080"), "Listen address")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origin (repeatable)")
	return cmd
}

func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting guild ledger API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down guild ledger API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
