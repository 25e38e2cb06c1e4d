// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/flynn/noise"

	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

// Default configuration values for the service and client.
const (
	// DefaultListenAddr is the default TCP address the server binds to.
	DefaultListenAddr = ":8445"

	// DefaultMaxConnections is the default maximum number of concurrent connections.
	DefaultMaxConnections = 100

	// MaxMaxConnections is the upper bound for MaxConnections.
	MaxMaxConnections = 10000

	// DefaultReadTimeout bounds the wait for each frame from a client.
	DefaultReadTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds writing each frame to a client.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultVerifyTimeout bounds one verification: the TLSA lookup and the
	// certificate retrieval together.
	DefaultVerifyTimeout = 20 * time.Second

	// DefaultRateLimit is the per-IP token refill rate in connections per second.
	DefaultRateLimit = 10.0

	// DefaultRateBurst is the per-IP burst size.
	DefaultRateBurst = 20

	// MaxFrameSize is the largest frame payload, the Noise message limit.
	MaxFrameSize = 65535

	// FrameHeaderSize is the size of the big-endian length prefix.
	FrameHeaderSize = 2

	// ServicePort and ServiceProtocol are the fixed TLSA parameters of
	// service requests: the service checks HTTPS endpoints.
	ServicePort     = 443
	ServiceProtocol = "tcp"
)

// Prologue binds both sides of the handshake to this protocol version.
var Prologue = []byte("danex-doctor/1")

// Verifier runs one DANE verification. *verify.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, domain string, port uint16, protocol string) (*verify.Report, error)
}

// ServerConfig configures the verification server.
type ServerConfig struct {
	// ListenAddr is the TCP address to bind (e.g. ":8445").
	ListenAddr string

	// StaticKey is the server's Curve25519 static key pair. Clients must
	// know its public half.
	StaticKey *noise.DHKey

	// Verifier answers verify requests.
	Verifier Verifier

	// MaxConnections limits simultaneous client connections. Zero or
	// negative values are replaced with DefaultMaxConnections.
	MaxConnections int

	// ReadTimeout is the deadline for reading a frame. Zero means
	// DefaultReadTimeout.
	ReadTimeout time.Duration

	// WriteTimeout is the deadline for writing a frame. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// VerifyTimeout bounds each verification. Zero means
	// DefaultVerifyTimeout.
	VerifyTimeout time.Duration

	// RateLimit is the per-IP refill rate in connections per second.
	RateLimit float64

	// RateBurst is the per-IP burst size.
	RateBurst int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ClientConfig configures a service client.
type ClientConfig struct {
	// ServerAddr is the TCP address of the service (e.g. "localhost:8445").
	ServerAddr string

	// ServerStaticKey is the server's 32-byte Curve25519 public key.
	ServerStaticKey []byte

	// ConnectTimeout bounds the TCP dial and the handshake. Zero means
	// DefaultWriteTimeout.
	ConnectTimeout time.Duration

	// OperationTimeout bounds one request/response exchange when the
	// context carries no deadline. Zero means DefaultVerifyTimeout.
	OperationTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// FileConfig is the TOML service configuration. Durations are whole
// seconds.
type FileConfig struct {
	Listen         string        `toml:"listen"`
	KeyFile        string        `toml:"key_file"`
	MaxConnections int           `toml:"max_connections"`
	ReadTimeout    int           `toml:"read_timeout"`
	WriteTimeout   int           `toml:"write_timeout"`
	VerifyTimeout  int           `toml:"verify_timeout"`
	RateLimit      float64       `toml:"rate_limit"`
	RateBurst      int           `toml:"rate_burst"`
	MetricsListen  string        `toml:"metrics_listen"`
	DNS            DNSFileConfig `toml:"dns"`
}

// DNSFileConfig is the [dns] table of FileConfig.
type DNSFileConfig struct {
	Server        string `toml:"server"`
	OverTLS       bool   `toml:"over_tls"`
	TLSServerName string `toml:"tls_server_name"`
	Timeout       int    `toml:"timeout"`
}

// DefaultFileConfig returns the configuration used when no file is given.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Listen:         DefaultListenAddr,
		KeyFile:        "danex-doctor.key",
		MaxConnections: DefaultMaxConnections,
		ReadTimeout:    int(DefaultReadTimeout / time.Second),
		WriteTimeout:   int(DefaultWriteTimeout / time.Second),
		VerifyTimeout:  int(DefaultVerifyTimeout / time.Second),
		RateLimit:      DefaultRateLimit,
		RateBurst:      DefaultRateBurst,
	}
}

// LoadConfig reads a TOML file over DefaultFileConfig. Unknown keys are
// rejected.
func LoadConfig(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%w: %s: unknown keys: %s", ErrConfig, path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *FileConfig) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}
	if c.MaxConnections < 0 || c.MaxConnections > MaxMaxConnections {
		errs = append(errs, fmt.Errorf("max_connections must be between 0 and %d", MaxMaxConnections))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.VerifyTimeout < 0 || c.DNS.Timeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// ResolverConfig returns the DNS settings of the [dns] table.
func (c *FileConfig) ResolverConfig() *dane.ResolverConfig {
	return &dane.ResolverConfig{
		Server:        c.DNS.Server,
		UseTLS:        c.DNS.OverTLS,
		TLSServerName: c.DNS.TLSServerName,
		Timeout:       seconds(c.DNS.Timeout),
	}
}

// ServerConfig builds the server configuration around key and verifier.
func (c *FileConfig) ServerConfig(key *noise.DHKey, verifier Verifier, logger *slog.Logger) *ServerConfig {
	return &ServerConfig{
		ListenAddr:     c.Listen,
		StaticKey:      key,
		Verifier:       verifier,
		MaxConnections: c.MaxConnections,
		ReadTimeout:    seconds(c.ReadTimeout),
		WriteTimeout:   seconds(c.WriteTimeout),
		VerifyTimeout:  seconds(c.VerifyTimeout),
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
		Logger:         logger,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
