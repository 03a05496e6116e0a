package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"example.com/liftcoach/internal/api"
	"example.com/liftcoach/internal/auth"
	"example.com/liftcoach/internal/config"
	"example.com/liftcoach/internal/connectivity"
	httptransport "example.com/liftcoach/internal/transport/http"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the local control API and keep the queue flowing",
		Long: `Serve the local control API and metrics, probe the remote log, and flush the
queue whenever it comes back online and on every SYNC_INTERVAL tick.

Every route except /healthz and /metrics needs a bearer token signed with
LIFTCOACH_JWT_SECRET; mint one with "liftcoach token".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rootOpts, address)
		},
	}

	cmd.Flags().StringVar(&address, "addr", "", "listen address (overrides HTTP_ADDRESS)")

	return cmd
}

func serve(ctx context.Context, opts *RootOptions, address string) error {
	if opts.config().JWTSecret == "" {
		return errMissingSecret
	}
	a, err := openApp(ctx, opts, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if address == "" {
		address = a.cfg.HTTPAddress
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reconnects := connectivity.OnOnline(ctx, a.monitor, func(ctx context.Context) {
		if _, err := a.dispatcher.Flush(ctx); err != nil {
			log.Printf("flush on reconnect failed: %v", err)
		}
	})
	if !opts.Offline {
		go a.prober.Run(ctx)
	}
	go a.dispatcher.Start(ctx)

	handler := api.NewHandler(a.dispatcher, a.queue, a.progress, a.sessions, a.monitor)
	logger := log.New(log.Writer(), "[http] ", log.LstdFlags|log.Lmsgprefix)
	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(address),
		controlHandler(a.cfg, handler, logger),
	)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("liftcoach listening on %s (remote log %s, %d pending)", address, a.client.Endpoint(), a.queue.Len(ctx))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Printf("graceful shutdown failed: %v", shutdownErr)
	}

	a.dispatcher.Wait()
	<-reconnects
	return err
}

var errMissingSecret = errors.New("LIFTCOACH_JWT_SECRET must be set to serve the control API")

// controlHandler assembles the control API: routes and metrics behind bearer-token
// authentication, with CORS and request logging outermost.
func controlHandler(cfg config.Config, handler *api.Handler, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authn := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.PublicPaths("/healthz", "/metrics"))
	return httptransport.RequestLog(logger, httptransport.CORS(cfg.UIOrigin, authn.Wrap(mux)))
}
