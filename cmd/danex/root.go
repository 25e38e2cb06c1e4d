// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeremyhahn/go-danex/pkg/certfetch"
	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

const (
	// defaultTimeout bounds one command's network work.
	defaultTimeout = 30 * time.Second

	// Rotation limits for --log-file.
	logMaxSizeMB  = 10
	logMaxBackups = 3
	logMaxAgeDays = 28
)

var (
	quiet     bool
	debug     bool
	format    string
	logFormat string
	logFile   string

	dnsServer        string
	dnsOverTLS       bool
	dnsTLSServerName string
	timeout          time.Duration
)

// logLevel controls the global slog level at runtime.
var logLevel = new(slog.LevelVar)

// exitFunc is the function called to exit the program.
// This can be overridden in tests to capture exit calls.
var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "danex <domain> <port> <protocol>",
	Short: "DANE/TLSA certificate verification",
	Long: `danex checks whether the certificate a TLS server presents matches the
TLSA records published for it in DNS (RFC 6698/7671).

The TLSA lookup for _<port>._<protocol>.<domain> and the certificate
retrieval from <domain>:<port> run concurrently. The DNSSEC status of the
answer is reported but does not change which records are checked.

Example:
  danex full.cert.getdnsapi.net 443 tcp`,
	Args:          exactArgsWithUsage(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
	RunE: runVerify,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress progress output (errors only)")
	pf.BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	pf.StringVar(&format, "format", "text", "output format (text|json)")
	pf.StringVar(&logFormat, "log-format", "text", "log output format (text|json)")
	pf.StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	pf.StringVar(&dnsServer, "dns-server", "", "DNS server address (default: first nameserver in /etc/resolv.conf)")
	pf.BoolVar(&dnsOverTLS, "dns-over-tls", false, "use DNS-over-TLS (DoT) for TLSA lookups")
	pf.StringVar(&dnsTLSServerName, "dns-tls-server-name", "", "TLS server name for DNS-over-TLS")
	pf.DurationVar(&timeout, "timeout", defaultTimeout, "overall timeout for network operations")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(keyCmd)
}

// initLogging configures the global slog logger based on CLI flags.
//
//	--debug: LevelDebug with source location
//	default: LevelInfo
//	--quiet: LevelError (only errors shown)
//
// --debug takes precedence over --quiet. --log-file sends records to a
// size-rotated file.
func initLogging() {
	switch {
	case debug:
		logLevel.Set(slog.LevelDebug)
	case quiet:
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	}

	handlers := map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
		"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
		"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	}

	factory, ok := handlers[logFormat]
	if !ok {
		factory = handlers["text"]
	}

	slog.SetDefault(slog.New(factory(logWriter(), opts)))
}

func logWriter() io.Writer {
	if logFile == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		LocalTime:  true,
		Compress:   true,
	}
}

// exactArgsWithUsage is cobra.ExactArgs that also prints the usage text to
// stderr, since SilenceUsage suppresses it for every other error.
func exactArgsWithUsage(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
			return err
		}
		return nil
	}
}

// resolverConfig builds the DNS settings from the persistent flags.
func resolverConfig() *dane.ResolverConfig {
	return &dane.ResolverConfig{
		Server:        dnsServer,
		UseTLS:        dnsOverTLS,
		TLSServerName: dnsTLSServerName,
	}
}

func newVerifier(rc *dane.ResolverConfig) (*verify.Verifier, error) {
	resolver, err := dane.NewDNSResolver(rc, slog.Default())
	if err != nil {
		return nil, err
	}
	retriever := certfetch.NewRetriever(&certfetch.Config{Logger: slog.Default()})
	return verify.New(&verify.Config{
		Lookuper:  resolver,
		Retriever: retriever,
		Logger:    slog.Default(),
	})
}

// commandContext returns a context cancelled by SIGINT/SIGTERM or after
// --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	sigCtx, sigStop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(sigCtx, timeout)
	return ctx, func() {
		cancel()
		sigStop()
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}
	domain, port, protocol, err := parseTarget(args[0], args[1], args[2])
	if err != nil {
		return err
	}

	v, err := newVerifier(resolverConfig())
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	slog.Debug("verifying", "domain", domain, "port", port, "protocol", protocol)

	report, err := v.Verify(ctx, domain, port, protocol)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func validateFormat() error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("%w: unknown --format %q", ErrInvalidInput, format)
	}
}

// parseTarget validates the positional arguments. The domain is converted
// to its ASCII form so the TLSA name and the TLS server name agree.
func parseTarget(domainArg, portArg, protocolArg string) (string, uint16, string, error) {
	domain, err := certfetch.EncodeHost(domainArg)
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: domain %q: %w", ErrInvalidInput, domainArg, err)
	}

	port, err := strconv.ParseUint(portArg, 10, 16)
	if err != nil || port == 0 {
		return "", 0, "", fmt.Errorf("%w: port must be between 1 and 65535, got %q", ErrInvalidInput, portArg)
	}

	protocol := strings.ToLower(strings.TrimSpace(protocolArg))
	if protocol == "" {
		return "", 0, "", fmt.Errorf("%w: protocol is required", ErrInvalidInput)
	}

	return domain, uint16(port), protocol, nil
}

// printReport writes the human-readable verification result.
func printReport(w io.Writer, r *verify.Report) {
	printRecords(w, r)
	fmt.Fprintln(w)

	switch {
	case r.RecordCount > 0 && !r.HasValidRecord():
		fmt.Fprintln(w, "INVALID TLSA records received.")
	case r.AnyMatch:
		fmt.Fprintln(w, "The server-sent certificate matches at least one of the TLSA records.")
	default:
		fmt.Fprintln(w, "The server-sent certificate did NOT match any TLSA record.")
	}
}

// printRecords writes the record count line and one line per answer.
func printRecords(w io.Writer, r *verify.Report) {
	plural := "s"
	if r.RecordCount == 1 {
		plural = ""
	}
	annotation := ""
	if r.RecordCount > 0 && !r.Trusted {
		annotation = " (UNTRUSTED)"
	}
	fmt.Fprintf(w, "%d TLSA record%s found.%s\n", r.RecordCount, plural, annotation)

	for _, o := range r.Records {
		fmt.Fprintln(w, o.String())
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrFileOperation, err)
	}
	return nil
}
