package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/arcflow/pkg/adapters/http"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 5 * time.Second

// Handler builds the HTTP API for the runtime, with /metrics when enabled.
func (r *Runtime) Handler() http.Handler {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(r.Logger)}
	if r.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetrics(r.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(r.Engine, opts...)
}

// Serve runs the HTTP API on port until ctx is cancelled, then drains.
func (r *Runtime) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.Logger.Info("arcflow server listening", "address", srv.Addr, "store", r.Config.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		r.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownGrace, err)
		}
		return nil
	}
}
