// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package certfetch

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// DefaultConnectTimeout bounds the TCP connect and TLS handshake of a
// single retrieval.
const DefaultConnectTimeout = 10 * time.Second

// DialFunc opens the underlying TCP connection. It has the signature of
// net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config configures a Retriever.
type Config struct {
	// Timeout bounds each retrieval. Defaults to DefaultConnectTimeout.
	Timeout time.Duration

	// DialContext overrides how the TCP connection is opened. Defaults to a
	// net.Dialer.
	DialContext DialFunc

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Retriever fetches server certificates over TLS.
type Retriever struct {
	timeout time.Duration
	dial    DialFunc
	logger  *slog.Logger
}

// NewRetriever creates a Retriever. A nil config selects all defaults.
func NewRetriever(cfg *Config) *Retriever {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	dial := cfg.DialContext
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		timeout: timeout,
		dial:    dial,
		logger:  logger.With("component", "cert_retriever"),
	}
}

// EncodeHost converts hostname to the ASCII form used on the wire: the
// IDNA A-label encoding for domain names, unchanged for IP literals. One
// trailing dot is removed.
func EncodeHost(hostname string) (string, error) {
	host := strings.TrimSuffix(hostname, ".")
	if host == "" {
		return "", errors.New("empty hostname")
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("idna: %w", err)
	}
	return ascii, nil
}

// Retrieve connects to hostname:port, completes a TLS handshake with SNI
// set to the ASCII hostname, and returns the first certificate the server
// sent. The connection is closed before returning. Every failure wraps
// ErrConnectionFailed.
func (r *Retriever) Retrieve(ctx context.Context, hostname string, port uint16) (*x509.Certificate, error) {
	if port == 0 {
		return nil, fmt.Errorf("%w: port 0", ErrConnectionFailed)
	}
	host, err := EncodeHost(hostname)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, hostname, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	r.logger.Debug("retrieving certificate", "addr", addr, "sni", host)

	rawConn, err := r.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, addr, err)
	}

	conn := tls.Client(rawConn, &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS10, //nolint:gosec // Only the certificate is collected; no data is exchanged.
		InsecureSkipVerify: true,             //nolint:gosec // The certificate is checked against TLSA records, not a CA pool.
	})
	defer conn.Close()

	if err := conn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: handshake with %s: %w", ErrConnectionFailed, addr, err)
	}

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: %s presented no certificate", ErrConnectionFailed, addr)
	}

	leaf := certs[0]
	r.logger.Debug("certificate retrieved",
		"addr", addr, "subject", leaf.Subject.String(), "chain_length", len(certs))

	return leaf, nil
}
