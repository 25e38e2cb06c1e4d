// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package certfetch retrieves the end-entity certificate a TLS server
// presents during the handshake. No chain or hostname validation is
// performed; the certificate is returned so it can be checked against
// DANE TLSA records instead.
package certfetch

import "errors"

var (
	// ErrConnectionFailed is returned when the host cannot be encoded, the
	// TCP connection cannot be established, the TLS handshake fails, or
	// the server presents no certificate.
	ErrConnectionFailed = errors.New("certfetch: connection failed")
)
