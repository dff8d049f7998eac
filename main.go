package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"cellarena/server"
)

const shutdownTimeout = 5 * time.Second

// cellarena: HTTP + WebSocket arena server.
func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogStderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer server.SyncLogger()

	if err := run(cfg); err != nil {
		server.Log.Errorf("server stopped: %v", err)
		server.SyncLogger()
		os.Exit(1)
	}
}

func run(cfg server.Config) error {
	rm := server.NewManager(cfg.DefaultRoom, cfg.RoomConfig())
	// create the default room up front so the first client does not pay for food seeding
	if _, err := rm.GetOrCreateRoom(cfg.DefaultRoom); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	mux.HandleFunc("/admin/settings", rm.HandleSettings)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server.Log.Infof("cellarena listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		server.Log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// hijacked websockets are not tracked by Shutdown; the manager closes them
		return multierr.Append(srv.Shutdown(sctx), rm.Close())
	})
	return g.Wait()
}
