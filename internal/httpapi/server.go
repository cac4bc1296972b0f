package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/docuflow/enginecore/internal/app"
	"github.com/docuflow/enginecore/internal/logger"
)

// Server wraps the read-model handler in a *http.Server with the
// teacher's Start/Stop lifecycle shape (non-blocking Start, graceful
// context-bound Stop).
type Server struct {
	addr   string
	server *http.Server
	log    *logger.Logger
}

func NewServer(application *app.Application, addr string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      NewHandler(application, log),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server error")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
