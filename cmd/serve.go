// =============================================================================
// Facturas Loader - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   facturas serve [--port N]
//
// ENDPOINTS:
//   POST /api/v1/tickets   Load the ticket in the request body
//                          (?persist=false to validate only)
//   GET  /health           Liveness probe
//   GET  /metrics          Prometheus metrics
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/facturas-loader/internal/api"
	"github.com/ginjaninja78/facturas-loader/internal/errors"
	"github.com/ginjaninja78/facturas-loader/internal/loader"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept tickets over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		port := appConfig.Server.Port
		if servePort > 0 {
			port = servePort
		}

		parser, err := newParser()
		if err != nil {
			return err
		}

		sk, err := openSink(ctx)
		if err != nil {
			return err
		}
		defer sk.Close()
		if err := sk.Init(ctx, false); err != nil {
			return errors.Wrap(err, "failed to initialise schema")
		}

		pipeline := loader.NewPipeline(parser, sk, appConfig.MaxConcurrency, appConfig.ContinueOnError, logger)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(api.NewHandler(pipeline, logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", zap.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "server failed")
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
}
