// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package doctor implements the danex verification service: a framed TCP
// server secured with a Noise_NK handshake that answers JSON "verify"
// requests with a compact DANE report, and the matching client.
package doctor

import "errors"

// Sentinel errors for the doctor package.
var (
	// ErrServerNotStarted indicates an operation was attempted before the server was started.
	ErrServerNotStarted = errors.New("doctor: server not started")

	// ErrServerAlreadyStarted indicates Start was called on an already-running server.
	ErrServerAlreadyStarted = errors.New("doctor: server already started")

	// ErrInvalidRequest indicates the client sent a malformed or unparseable request.
	ErrInvalidRequest = errors.New("doctor: invalid request")

	// ErrMethodNotFound indicates the requested method is not registered.
	ErrMethodNotFound = errors.New("doctor: method not found")

	// ErrVerifierNotConfigured indicates the server was built without a verifier.
	ErrVerifierNotConfigured = errors.New("doctor: verifier not configured")

	// ErrConnectionFailed indicates a TCP connection could not be established
	// or broke mid-exchange.
	ErrConnectionFailed = errors.New("doctor: connection failed")

	// ErrTimeout indicates an I/O deadline could not be applied.
	ErrTimeout = errors.New("doctor: operation timeout")

	// ErrFrameTooLarge indicates a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("doctor: frame too large")

	// ErrHandshakeFailed indicates the Noise_NK handshake did not complete.
	ErrHandshakeFailed = errors.New("doctor: handshake failed")

	// ErrServerError indicates the server answered with an error response.
	ErrServerError = errors.New("doctor: server error")

	// ErrConfig indicates an invalid service configuration.
	ErrConfig = errors.New("doctor: invalid configuration")
)
