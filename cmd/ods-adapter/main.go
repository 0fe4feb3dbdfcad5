// Package main wires the Open Data Service adapter: protocol and format
// plugin registries, a memory or NATS KV backed store, the trigger
// engine, and the broker publisher for outcome notifications.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jvalue/ods-adapter/config"
	"github.com/jvalue/ods-adapter/datasource"
	"github.com/jvalue/ods-adapter/format"
	"github.com/jvalue/ods-adapter/metric"
	"github.com/jvalue/ods-adapter/natsclient"
	"github.com/jvalue/ods-adapter/plugins"
	"github.com/jvalue/ods-adapter/protocol"
	"github.com/jvalue/ods-adapter/publisher"
	"github.com/jvalue/ods-adapter/storage/memstore"
	"github.com/jvalue/ods-adapter/storage/natskv"
)

// Build information constants.
const (
	Version = "0.1.0"
	appName = "ods-adapter"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("adapter failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if cliCfg.Validate {
		fmt.Println("configuration is valid")
		return nil
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("starting adapter", "storage_mode", cfg.Storage.Mode, "nats_url", cfg.NATS.URL)

	metrics := metric.New()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return err
	}

	nats := natsclient.New(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithConnectTimeout(cfg.NATS.ConnectTimeout),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
	)
	if err := nats.Connect(); err != nil {
		return err
	}
	defer nats.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store datasource.Store
	switch cfg.Storage.Mode {
	case config.StorageModeKV:
		kvStore, err := natskv.New(ctx, nats)
		if err != nil {
			return err
		}
		store = kvStore
	default:
		store = memstore.New()
	}

	pub := publisher.New(nats, cfg.Publisher.Retries, cfg.Publisher.Backoff, publisher.Options{
		Metrics: metrics,
		Logger:  logger.With("component", "publisher"),
	})

	protocols := protocol.NewRegistry()
	formats := format.NewRegistry()
	httpClient := &http.Client{Timeout: cfg.HTTPFetch.Timeout}
	if err := plugins.RegisterProtocols(protocols, httpClient); err != nil {
		return err
	}
	if err := plugins.RegisterFormats(formats); err != nil {
		return err
	}

	manager := datasource.NewManager(store, protocols, formats, pub, datasource.ManagerOptions{
		Metrics: metrics,
		Logger:  logger.With("component", "manager"),
	})

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metric.Handler(registry))
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	logger.Info("adapter ready",
		"protocols", len(manager.ListProtocols()),
		"formats", len(manager.ListFormats()),
	)

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cliCfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics endpoint shutdown failed", "error", err)
		}
	}
	return nil
}
