// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jeremyhahn/go-danex/pkg/certfetch"
	"github.com/jeremyhahn/go-danex/pkg/dane"
	"github.com/jeremyhahn/go-danex/pkg/verify"
)

// MethodVerify is the only method the service implements.
const MethodVerify = "verify"

// Request is the JSON request format.
type Request struct {
	// Method identifies the operation to perform.
	Method string `json:"method"`

	// Domain is the host whose HTTPS certificate is checked.
	Domain string `json:"domain"`
}

// Response is the JSON response format: the verification payload, or a
// lone error message.
type Response struct {
	*verify.Payload

	// Error is set when the request could not be served.
	Error string `json:"error,omitempty"`
}

type handlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Handler dispatches requests by method name.
type Handler struct {
	verifier Verifier
	handlers map[string]handlerFunc
	logger   *slog.Logger
}

// NewHandler creates a Handler. verifier may be nil, in which case verify
// requests fail with ErrVerifierNotConfigured.
func NewHandler(verifier Verifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		verifier: verifier,
		logger:   logger,
	}
	h.handlers = map[string]handlerFunc{
		MethodVerify: h.handleVerify,
	}
	return h
}

// Handle dispatches req on its Method.
func (h *Handler) Handle(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	handler, ok := h.handlers[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, req.Method)
	}
	return handler(ctx, req)
}

func (h *Handler) handleVerify(ctx context.Context, req *Request) (*Response, error) {
	if h.verifier == nil {
		return nil, ErrVerifierNotConfigured
	}

	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidRequest)
	}

	report, err := h.verifier.Verify(ctx, domain, ServicePort, ServiceProtocol)
	if err != nil {
		return nil, err
	}
	return &Response{Payload: report.Payload()}, nil
}

// ErrorMessage maps a request failure to the message sent to clients.
// Internal error text never leaves the server.
func ErrorMessage(err error) string {
	var lookupErr *dane.LookupError
	switch {
	case errors.As(err, &lookupErr):
		return "TLSA lookup failed: " + lookupErr.Name()
	case errors.Is(err, ErrMethodNotFound):
		return "unknown method"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, dane.ErrInvalidHostname),
		errors.Is(err, dane.ErrInvalidPort),
		errors.Is(err, dane.ErrInvalidProtocol):
		return "invalid request"
	case errors.Is(err, context.DeadlineExceeded):
		return "verification timed out"
	case errors.Is(err, certfetch.ErrConnectionFailed):
		return "could not retrieve server certificate"
	case errors.Is(err, ErrVerifierNotConfigured):
		return "service unavailable"
	default:
		return "internal error"
	}
}
