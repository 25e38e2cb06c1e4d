// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/flynn/noise"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
	"github.com/jeremyhahn/go-danex/pkg/noiseproto/doctor"
)

const (
	// shutdownTimeout bounds the graceful stop of the service.
	shutdownTimeout = 10 * time.Second

	// metricsReadHeaderTimeout bounds header reads on the metrics listener.
	metricsReadHeaderTimeout = 5 * time.Second
)

// serveCmd runs the verification service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DANE verification service",
	Long: `Run a verification service that answers DANE check requests over an
encrypted Noise_NK channel. Each request names a domain; the service checks
the certificate served on port 443 against the TLSA records of
_443._tcp.<domain> and returns a JSON report.

Settings are read from an optional TOML file (--config). Flags that are set
explicitly override the file. The static key is loaded from --key-file, or
generated and written there on first start. Its public half is logged and
must be given to clients.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to TOML configuration file")
	serveCmd.Flags().String("listen", doctor.DefaultListenAddr, "TCP listen address")
	serveCmd.Flags().String("key-file", defaultKeyFile, "path to the service static key file (hex-encoded)")
	serveCmd.Flags().Int("max-connections", doctor.DefaultMaxConnections, "maximum concurrent connections")
	serveCmd.Flags().String("metrics-listen", "", "address for the Prometheus /metrics endpoint (disabled when empty)")
}

// serveInstance is a running service and its optional metrics endpoint.
type serveInstance struct {
	server      *doctor.Server
	metrics     *http.Server
	metricsAddr string
	key         *noise.DHKey
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := buildServeConfig(cmd)
	if err != nil {
		return err
	}

	inst, err := startServe(cfg)
	if err != nil {
		return err
	}

	sigCtx, sigStop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer sigStop()

	<-sigCtx.Done()
	slog.Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := inst.shutdown(stopCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// buildServeConfig reads --config, if any, and applies explicitly set
// flags over it.
func buildServeConfig(cmd *cobra.Command) (*doctor.FileConfig, error) {
	flags := cmd.Flags()

	cfg := doctor.DefaultFileConfig()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := doctor.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("listen") {
		cfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("key-file") {
		cfg.KeyFile, _ = flags.GetString("key-file")
	}
	if flags.Changed("max-connections") {
		cfg.MaxConnections, _ = flags.GetInt("max-connections")
	}
	if flags.Changed("metrics-listen") {
		cfg.MetricsListen, _ = flags.GetString("metrics-listen")
	}
	if flags.Changed("dns-server") {
		cfg.DNS.Server = dnsServer
	}
	if flags.Changed("dns-over-tls") {
		cfg.DNS.OverTLS = dnsOverTLS
	}
	if flags.Changed("dns-tls-server-name") {
		cfg.DNS.TLSServerName = dnsTLSServerName
	}

	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("%w: key file is required", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startServe loads the key, wires the verifier and starts listening.
func startServe(cfg *doctor.FileConfig) (*serveInstance, error) {
	key, generated, err := noiseproto.LoadOrGenerateStaticKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyOperation, err)
	}
	if generated {
		slog.Info("static key generated", "path", cfg.KeyFile)
	} else {
		slog.Info("static key loaded", "path", cfg.KeyFile)
	}

	verifier, err := newVerifier(cfg.ResolverConfig())
	if err != nil {
		noiseproto.WipeDHKey(key)
		return nil, err
	}

	server, err := doctor.NewServer(cfg.ServerConfig(key, verifier, slog.Default()))
	if err != nil {
		noiseproto.WipeDHKey(key)
		return nil, err
	}
	if err := server.Start(); err != nil {
		noiseproto.WipeDHKey(key)
		return nil, fmt.Errorf("%w: %w", ErrServe, err)
	}

	inst := &serveInstance{server: server, key: key}

	if cfg.MetricsListen != "" {
		if err := inst.startMetrics(cfg.MetricsListen); err != nil {
			_ = inst.shutdown(context.Background())
			return nil, err
		}
	}

	slog.Info("listening",
		"addr", server.Addr().String(),
		"public_key", noiseproto.PublicKeyHex(key))
	return inst, nil
}

func (i *serveInstance) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: metrics listener: %w", ErrServe, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	i.metrics = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		if err := i.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	i.metricsAddr = ln.Addr().String()
	slog.Info("metrics listening", "addr", i.metricsAddr)
	return nil
}

// shutdown stops the service and the metrics endpoint and wipes the key.
func (i *serveInstance) shutdown(ctx context.Context) error {
	defer noiseproto.WipeDHKey(i.key)

	var errs []error
	if i.metrics != nil {
		if err := i.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := i.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrServe, errors.Join(errs...))
	}
	return nil
}
