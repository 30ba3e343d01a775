package httpbase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 5 * time.Second

type GraceServerOpt struct {
	Port int
}

// GracefulServer wraps http.Server with signal-driven graceful shutdown.
type GracefulServer struct {
	server *http.Server
}

func NewGracefulServer(opt GraceServerOpt, handler http.Handler) *GracefulServer {
	return &GracefulServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", opt.Port),
			Handler: handler,
		},
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests
// for up to shutdownTimeout before returning.
func (s *GracefulServer) Run() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server listen failed", slog.Any("error", err))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
		return
	}
	slog.Info("http server stopped")
}
