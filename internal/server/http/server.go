package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nickweedon/leasedkeyq/internal/runtime"
	"github.com/nickweedon/leasedkeyq/internal/server/http/controllers"
	queuesvc "github.com/nickweedon/leasedkeyq/internal/services/queues"
	logpkg "github.com/nickweedon/leasedkeyq/pkg/log"
)

// Server exposes the queue API over HTTP/JSON, plus health and Prometheus
// metrics endpoints.
type Server struct {
	rt     *runtime.Runtime
	svc    *queuesvc.Service
	logger logpkg.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds a Server around an existing service instance.
func New(rt *runtime.Runtime, svc *queuesvc.Service, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.With(logpkg.Component("http"))

	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		svc:    svc,
		logger: logger,
		srv:    &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(svc.Metrics().Registry(), promhttp.HandlerOpts{}))
	controllers.NewQueuesController(svc, logger).RegisterRoutes(mux)
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Handler returns the server's root handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
