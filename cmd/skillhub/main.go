package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enterprise-skillhub/skillhub/internal/app"
)

// version is set at build time via -ldflags.
var version = "dev"

// healthURL turns a listen address such as ":3000" or "0.0.0.0:3000" into
// the local /healthz URL.
func healthURL(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz", nil
}

// runHealthCheck probes /healthz on the given listen address.
func runHealthCheck(addr string) error {
	url, err := healthURL(addr)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	// Container HEALTHCHECK mode; distroless images have no curl.
	if len(os.Args) > 1 && os.Args[1] == "-healthcheck" {
		addr := os.Getenv("SKILLHUB_LISTEN_ADDR")
		if addr == "" {
			addr = ":3000"
		}
		if err := runHealthCheck(addr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := app.NewServer(ctx, cfg, version)
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// Leave room for a call that runs to its own deadline.
		WriteTimeout: time.Duration(cfg.CallTimeoutSecs+10) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("skillhub listening", slog.String("addr", cfg.ListenAddr), slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down, draining in-flight requests")
	case err := <-errCh:
		if err != nil {
			slog.Error("listen error", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if err := srv.Close(shutdownCtx); err != nil {
		slog.Error("server close error", slog.String("error", err.Error()))
	}
	slog.Info("shutdown complete")
}
