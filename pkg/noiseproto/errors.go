// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package noiseproto provides the Noise_NK channel used by the danex
// verification service: Curve25519 static keys, ChaChaPoly and SHA-256.
// The client knows the server's static public key in advance and stays
// anonymous itself.
package noiseproto

import "errors"

// Sentinel errors for the noiseproto package.
var (
	// ErrHandshakeFailed indicates the Noise protocol handshake failed.
	ErrHandshakeFailed = errors.New("noise: handshake failed")

	// ErrWrongRole indicates a handshake step was invoked on the wrong side
	// of the handshake.
	ErrWrongRole = errors.New("noise: wrong handshake role")

	// ErrEncryptionFailed indicates message encryption failed.
	ErrEncryptionFailed = errors.New("noise: encryption failed")

	// ErrDecryptionFailed indicates message decryption failed.
	ErrDecryptionFailed = errors.New("noise: decryption failed")

	// ErrInvalidMessage indicates a malformed Noise protocol message.
	ErrInvalidMessage = errors.New("noise: invalid message")

	// ErrInvalidKeySize indicates a key with an incorrect size was provided.
	ErrInvalidKeySize = errors.New("noise: invalid key size")

	// ErrKeyFile indicates a static key file could not be read or written.
	ErrKeyFile = errors.New("noise: key file")

	// ErrSessionNotReady indicates an operation was attempted before the
	// handshake completed successfully.
	ErrSessionNotReady = errors.New("noise: session not ready")
)
