package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/nickweedon/leasedkeyq/internal/config"
	"github.com/nickweedon/leasedkeyq/internal/runtime"
	httpserver "github.com/nickweedon/leasedkeyq/internal/server/http"
	queuesvc "github.com/nickweedon/leasedkeyq/internal/services/queues"
	logpkg "github.com/nickweedon/leasedkeyq/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Options for running the server.
type Options struct {
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context. We
	// layer a local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build process-wide logger from env; defaults: level=info, format=text
	cfg := &logpkg.Config{
		Level:  getenvDefault("LKQ_LOG_LEVEL", "info"),
		Format: getenvDefault("LKQ_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: procLogger})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("starting leasedkeyq server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
		logpkg.Int64("default_lease_timeout_ms", opts.Config.QueueDefaults.LeaseTimeoutMs),
	)

	svc := queuesvc.NewWithLogger(rt, procLogger.With(logpkg.Component("queues")))
	hsrv := httpserver.New(rt, svc, procLogger)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		return hsrv.ListenAndServe(gctx, opts.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		hsrv.Close()
		return nil
	})
	if err := g.Wait(); err != nil && sctx.Err() == nil {
		return err
	}
	procLogger.Info("server stopped")
	return nil
}
