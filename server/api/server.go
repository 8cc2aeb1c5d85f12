package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Server is the prover node's HTTP surface: a mux router behind an ordered
// middleware stack.
type Server struct {
	cfg Config
	log zerolog.Logger

	Router *mux.Router
	stack  []Middleware
	srv    *http.Server

	mtx      sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewServer(cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log.With().Str("component", "http-api").Logger(),
		Router: mux.NewRouter(),
		ready:  make(chan struct{}),
	}
	if cfg.EnableCORS {
		s.Use(cors())
	}
	return s
}

// Use adds middleware to the stack. Earlier middleware sees the request
// first; CORS, when enabled, is always outermost.
func (s *Server) Use(mws ...Middleware) {
	s.stack = append(s.stack, mws...)
}

// Handler returns the router behind the middleware stack.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router
	for i := len(s.stack) - 1; i >= 0; i-- {
		h = s.stack[i](h)
	}
	return h
}

// Start listens on the configured address and serves until ctx ends, then
// drains in-flight requests for up to shutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}
	s.mtx.Lock()
	s.listener, s.srv = ln, srv
	s.mtx.Unlock()
	close(s.ready)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			s.log.Warn().Err(err).Msg("HTTP API shutdown did not drain")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("HTTP API stopped")
	return nil
}

// Addr blocks until the server listens and returns the bound address.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.listener.Addr(), nil
}

// cors lets browser dashboards poll job status and stats.
func cors() Middleware {
	return handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)
}
