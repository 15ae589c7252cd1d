package monitoring

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
)

// Handler returns an HTTP handler exposing the private registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server exposes metrics over HTTP. A nil Server is a valid no-op.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve starts a /metrics listener on addr. An empty addr disables exposition
// and returns nil. Listen failures are logged and also yield nil.
func (m *Metrics) Serve(addr string, logger *logging.Logger) *Server {
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("metrics listener disabled", zap.String("addr", addr), zap.Error(err))
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	return s
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener immediately
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.srv.Close()
}
