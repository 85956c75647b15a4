package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// MonitorServer serves the operator panel. Handlers are registered on the
// server's own mux, so they survive restarts on config changes.
type MonitorServer struct {
	mux   *http.ServeMux
	srvMu sync.Mutex // protects srv, listener and done
	srv   *http.Server
	addr  net.Addr
	done  chan struct{}
}

func NewMonitorServer() *MonitorServer {
	return &MonitorServer{mux: http.NewServeMux()}
}

func (s *MonitorServer) Handler() http.Handler {
	return s.mux
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

// Start listens on the configured panel port.
func (s *MonitorServer) Start() error {
	return s.StartOn(fmt.Sprintf(":%d", Config.GetInt("panel_port")))
}

func (s *MonitorServer) StartOn(addr string) error {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.srv != nil {
		return fmt.Errorf("already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	done := make(chan struct{})
	s.srv, s.addr, s.done = srv, ln.Addr(), done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			Logger.Warn().Msgf("Problem running monitor server: %v", err)
		}
		Logger.Debug().Msg("monitor server shutdown")
	}()
	Logger.Info().Msgf("monitor server listening on %v", ln.Addr())
	return nil
}

// Addr is the bound address, or nil when stopped.
func (s *MonitorServer) Addr() net.Addr {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	return s.addr
}

func (s *MonitorServer) Shutdown(ctx context.Context) error {
	s.srvMu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.addr, s.done = nil, nil, nil
	s.srvMu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		Logger.Error().Msgf("Error shutting down monitor server: %v", err)
	}
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}
