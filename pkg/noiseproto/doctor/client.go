// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

// Client talks to a verification server over one Noise_NK channel.
type Client struct {
	mu      sync.Mutex
	config  ClientConfig
	conn    net.Conn
	session *noiseproto.Session
	logger  *slog.Logger
}

// NewClient creates a client. ServerStaticKey must be a 32-byte
// Curve25519 public key.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfig)
	}
	if len(cfg.ServerStaticKey) != noiseproto.KeySize {
		return nil, fmt.Errorf("%w: server static key must be %d bytes, got %d",
			ErrHandshakeFailed, noiseproto.KeySize, len(cfg.ServerStaticKey))
	}

	c := *cfg
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultWriteTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultVerifyTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: c,
		logger: logger.With("component", "doctor-client"),
	}, nil
}

// Connect dials the server and performs the handshake as initiator.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: c.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	session, err := c.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.session = session
	c.logger.Debug("handshake complete", "server", c.config.ServerAddr)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn net.Conn) (*noiseproto.Session, error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		Role:          noiseproto.RoleInitiator,
		PeerStaticKey: c.config.ServerStaticKey,
		Prologue:      Prologue,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.ConnectTimeout)
	}

	msg1, err := session.Initiate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(conn, msg1, deadline); err != nil {
		return nil, fmt.Errorf("%w: send msg1: %w", ErrHandshakeFailed, err)
	}

	msg2, err := ReadFrame(conn, deadline)
	if err != nil {
		return nil, fmt.Errorf("%w: read msg2: %w", ErrHandshakeFailed, err)
	}
	if err := session.Complete(msg2); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	return session, nil
}

// Do sends req and returns the server's response. A response carrying an
// error message is returned together with ErrServerError. A transport or
// decryption failure closes the connection and Connect must be called
// again before the next request.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.session == nil {
		return nil, fmt.Errorf("%w: not connected", ErrConnectionFailed)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrInvalidRequest, err)
	}
	ciphertext, err := c.session.Encrypt(data)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.OperationTimeout)
	}

	if err := WriteFrame(c.conn, ciphertext, deadline); err != nil {
		c.drop()
		return nil, fmt.Errorf("doctor: write request: %w", err)
	}
	frame, err := ReadFrame(c.conn, deadline)
	if err != nil {
		c.drop()
		return nil, fmt.Errorf("doctor: read response: %w", err)
	}

	plaintext, err := c.session.Decrypt(frame)
	if err != nil {
		c.drop()
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(plaintext, &resp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrInvalidRequest, err)
	}
	if resp.Error != "" {
		return &resp, fmt.Errorf("%w: %s", ErrServerError, resp.Error)
	}
	return &resp, nil
}

// drop closes the connection and forgets the session. Callers hold c.mu.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.session = nil
}

// Verify asks the server to check the HTTPS certificate of domain.
func (c *Client) Verify(ctx context.Context, domain string) (*verify.Payload, error) {
	resp, err := c.Do(ctx, &Request{Method: MethodVerify, Domain: domain})
	if err != nil {
		return nil, err
	}
	if resp.Payload == nil {
		return nil, fmt.Errorf("%w: empty response", ErrServerError)
	}
	return resp.Payload, nil
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.session = nil
	return err
}
