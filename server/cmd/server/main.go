package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/statusdeck/statusdeck/server/internal/api"
	"github.com/statusdeck/statusdeck/server/internal/audit"
	"github.com/statusdeck/statusdeck/server/internal/auth"
	"github.com/statusdeck/statusdeck/server/internal/config"
	"github.com/statusdeck/statusdeck/server/internal/metrics"
	"github.com/statusdeck/statusdeck/server/internal/upstream"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	staticDir := flag.String("static-dir", "", "serve the browser UI from this directory (overrides server.static_dir)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("statusdeck-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	fromFile := *cfg
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}

	client, err := upstream.New(cfg.Upstreams, cfg.Server.TLS)
	if err != nil {
		slog.Error("failed to build upstream client", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"static_dir", cfg.Server.StaticDir,
		"audit", cfg.Server.Audit.Enabled,
		"hypervisor_configured", client.Configured(upstream.Hypervisor),
		"containers_configured", client.Configured(upstream.Containers),
		"media_configured", client.Configured(upstream.Media),
		"chat_token_configured", client.Configured(upstream.Chat),
		"tls_insecure", cfg.Server.TLS.InsecureSkipVerify,
		"auth_mode", cfg.Server.Auth.Mode,
	)
	if m := cfg.Server.Auth.Mode; m != "" && m != "none" && !auth.Enabled(cfg.Server.Auth) {
		slog.Warn("server.auth secret not set in environment; access is unauthenticated", "mode", m)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	auditLog := audit.New(cfg.Server.Audit.Enabled, cfg.Server.Audit.Path,
		audit.WithScrub(client.Scrub),
		audit.WithParams(cfg.Upstreams.Containers.KeyParam),
		audit.WithFailureCounter(m.AuditFailures()),
	)
	defer auditLog.Close()

	// Credentials and the transport are fixed for the process lifetime, so a
	// config edit is only reported.
	go func() {
		err := config.Watch(ctx, *configPath, &fromFile, func(changed []string) {
			slog.Warn("config file changed; restart statusdeck-server to apply",
				"path", *configPath, "sections", changed)
		})
		if err != nil {
			slog.Warn("config watch unavailable", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(api.Deps{
			Config:   cfg,
			Upstream: client,
			Audit:    auditLog,
			Metrics:  m,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("statusdeck-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
