package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/taiwan-data-etl/internal/adapter/http"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview rendered outputs over HTTP with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.v.GetString("addr")
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			dir := a.v.GetString("dir")
			srv := httpadapter.NewServer(addr, dir, httpadapter.DirReadiness{Dir: dir}, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, srv, a)
		},
	}
	cmd.Flags().String("dir", defaultOutDir, "directory to serve")
	cmd.Flags().String("addr", "", "listen address (default HTTP_ADDR)")
	return cmd
}

type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is cancelled, then drains it within the
// configured shutdown timeout.
func serve(ctx context.Context, srv server, a *app) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Start returns once Shutdown has closed the listener.
	<-errCh
	a.logger.Info("shutdown complete")
	return nil
}
