// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jeremyhahn/go-danex/pkg/noiseproto"
)

const (
	limiterIdleAge    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

// Server accepts Noise_NK connections and answers verify requests. Each
// connection may carry any number of requests until the client closes it
// or stays silent past ReadTimeout.
type Server struct {
	mu       sync.Mutex
	config   ServerConfig
	handler  *Handler
	listener net.Listener
	limiter  *ipLimiter
	sem      chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewServer validates cfg and applies defaults. The server does not listen
// until Start is called.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrConfig)
	}
	if cfg.StaticKey == nil {
		return nil, fmt.Errorf("%w: static key is required", ErrConfig)
	}
	if len(cfg.StaticKey.Private) != noiseproto.KeySize || len(cfg.StaticKey.Public) != noiseproto.KeySize {
		return nil, fmt.Errorf("%w: %w", ErrConfig, noiseproto.ErrInvalidKeySize)
	}

	c := *cfg
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxConnections > MaxMaxConnections {
		c.MaxConnections = MaxMaxConnections
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = DefaultVerifyTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	logger := c.Logger.With("component", "doctor")

	return &Server{
		config:  c,
		handler: NewHandler(c.Verifier, logger),
		sem:     make(chan struct{}, c.MaxConnections),
		logger:  logger,
	}, nil
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrConnectionFailed, s.config.ListenAddr, err)
	}

	s.listener = ln
	s.limiter = newIPLimiter(s.config.RateLimit, s.config.RateBurst, limiterIdleAge, limiterSweepEvery)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln, s.limiter)

	s.logger.Info("service listening", "addr", ln.Addr().String(),
		"max_connections", s.config.MaxConnections)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener, cancels in-flight verifications and waits for
// connection handlers to return or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	err := s.listener.Close()
	s.listener = nil
	s.cancel()
	s.limiter.Stop()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("service stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, limiter *ipLimiter) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if !limiter.Allow(conn.RemoteAddr()) {
			metricRejected.WithLabelValues("rate_limit").Inc()
			s.logger.Debug("rate limited", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			metricRejected.WithLabelValues("max_connections").Inc()
			s.logger.Warn("max connections reached", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		metricConnections.Inc()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn runs the handshake and then answers requests until the client
// goes away. Once the handshake is complete every request frame gets a
// well-formed response.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	// Unblock pending reads when the server stops.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	session, err := s.handshake(conn)
	if err != nil {
		metricRejected.WithLabelValues("handshake").Inc()
		s.logger.Debug("handshake failed", "remote", remote, "error", err)
		return
	}

	for {
		frame, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("read request failed", "remote", remote, "error", err)
			}
			return
		}

		resp := s.serveRequest(ctx, session, frame, remote)
		if err := s.writeResponse(conn, session, resp); err != nil {
			s.logger.Debug("write response failed", "remote", remote, "error", err)
			return
		}
	}
}

func (s *Server) handshake(conn net.Conn) (*noiseproto.Session, error) {
	session, err := noiseproto.NewSession(&noiseproto.SessionConfig{
		Role:      noiseproto.RoleResponder,
		StaticKey: s.config.StaticKey,
		Prologue:  Prologue,
	})
	if err != nil {
		return nil, err
	}

	msg1, err := ReadFrame(conn, time.Now().Add(s.config.ReadTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: read msg1: %w", ErrHandshakeFailed, err)
	}
	msg2, err := session.Respond(msg1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if err := WriteFrame(conn, msg2, time.Now().Add(s.config.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("%w: send msg2: %w", ErrHandshakeFailed, err)
	}
	return session, nil
}

// serveRequest decrypts and dispatches one request frame. Failures become
// error responses.
func (s *Server) serveRequest(ctx context.Context, session *noiseproto.Session, frame []byte, remote string) *Response {
	resp, err := s.dispatch(ctx, session, frame)
	if err != nil {
		metricRequests.WithLabelValues("error").Inc()
		s.logger.Info("request failed", "remote", remote, "error", err)
		return &Response{Error: ErrorMessage(err)}
	}
	metricRequests.WithLabelValues("ok").Inc()
	return resp
}

func (s *Server) dispatch(ctx context.Context, session *noiseproto.Session, frame []byte) (*Response, error) {
	plaintext, err := session.Decrypt(frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	var req Request
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.VerifyTimeout)
	defer cancel()

	return s.handler.Handle(ctx, &req)
}

func (s *Server) writeResponse(conn net.Conn, session *noiseproto.Session, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(&Response{Error: "internal error"})
	}
	ciphertext, err := session.Encrypt(data)
	if err != nil {
		return err
	}
	return WriteFrame(conn, ciphertext, time.Now().Add(s.config.WriteTimeout))
}
