package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/fx"

	"castforge/internal/config"
	"castforge/internal/support/logger"
)

// NewHTTPServer builds the http.Server and binds it to the Fx lifecycle.
func NewHTTPServer(lc fx.Lifecycle, s *Server, cfg *config.Config) *http.Server {
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.Handler(),
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Infof("HTTP server listening on %s.", srv.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("HTTP server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Shutting down HTTP server.")
			return srv.Shutdown(ctx)
		},
	})
	return srv
}

// Module is an Fx module that provides the HTTP surface.
var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(NewHTTPServer),
)
