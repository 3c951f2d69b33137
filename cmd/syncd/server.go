package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/infrastructure/sqlstore/listener"
	"finsync/internal/interfaces/scheduler"
)

// StartServer starts the ops server in the background. A listen failure is
// sent on the returned channel.
func StartServer(addr string, handler http.Handler, log zerolog.Logger) (*http.Server, <-chan error) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("ops server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return srv, errCh
}

// GracefulShutdown stops intake first (listener, scheduler), then the ops server.
func GracefulShutdown(srv *http.Server, sched *scheduler.Scheduler, lst *listener.SyncListener, timeout time.Duration, log zerolog.Logger) {
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if lst != nil {
		lst.Stop()
	}

	if sched != nil {
		stopped := make(chan struct{})
		go func() {
			sched.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			log.Warn().Msg("scheduler did not stop before the shutdown deadline")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down ops server")
	}

	log.Info().Msg("stopped")
}
