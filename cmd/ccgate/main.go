package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sertdev/ccgate/internal/api"
	"github.com/sertdev/ccgate/internal/auth"
	"github.com/sertdev/ccgate/internal/balancer"
	"github.com/sertdev/ccgate/internal/billing"
	"github.com/sertdev/ccgate/internal/config"
	"github.com/sertdev/ccgate/internal/crypto"
	"github.com/sertdev/ccgate/internal/metrics"
	"github.com/sertdev/ccgate/internal/proxy"
	"github.com/sertdev/ccgate/internal/server"
	"github.com/sertdev/ccgate/internal/slogger"
	"github.com/sertdev/ccgate/internal/usage"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	slogger.Setup(envOr("CCGATE_LOG_FORMAT", "json"))

	// Upstream keys in upstreams.json may be stored encrypted; the
	// passphrase comes from the environment.
	var cfgOpts *config.Opts
	if passphrase := os.Getenv("CCGATE_ENCRYPTION_KEY"); passphrase != "" {
		key := crypto.DeriveKey(passphrase)
		cfgOpts = &config.Opts{
			Decrypt: func(s string) (string, error) {
				return crypto.DecryptIfEncrypted(s, key)
			},
		}
	}

	configDir := envOr("CCGATE_CONFIG_DIR", "config")
	cfg, err := config.NewStore(configDir, cfgOpts)
	if err != nil {
		slog.Error("failed to load configuration", "dir", configDir, "error", err)
		os.Exit(1)
	}

	ustore := usage.NewStore(envOr("CCGATE_DATA_DIR", "data/usage"))
	pricer := billing.NewPricer(cfg)
	guard := billing.NewLimitGuard(pricer, ustore)
	authenticator := auth.New(cfg)
	m := metrics.New()

	lb := balancer.New(cfg.Snapshot(), &balancer.Opts{
		OnHealthChange: m.SetUpstreamHealth,
	})
	defer lb.Stop()

	proxyHandler := proxy.NewHandler(cfg, authenticator, guard, pricer, lb, ustore, m)
	adminRouter := api.NewRouter(cfg, ustore)
	router := server.New(cfg, proxyHandler, m, adminRouter)

	srv := &http.Server{
		Addr:         cfg.Snapshot().ListenAddr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // disabled — streaming responses can run for minutes
		IdleTimeout:  120 * time.Second,
	}

	// SIGHUP re-reads the config directory and swaps the snapshot; the
	// balancer restarts its probes against the new upstream list.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := cfg.Reload(); err != nil {
				slog.Error("config reload failed, keeping previous snapshot", "error", err)
				continue
			}
			lb.Reload(cfg.Snapshot())
			slog.Info("configuration reloaded")
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("ccgate listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
