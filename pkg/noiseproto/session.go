// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flynn/noise"
)

// Protocol constants.
const (
	// KeySize is the size of Curve25519 keys in bytes.
	KeySize = 32

	// MaxMessageSize is the maximum plaintext message size.
	// Noise protocol maximum (65535) minus the AEAD tag overhead (16).
	MaxMessageSize = 65535 - 16
)

// cipherSuite is the only suite spoken by this package.
var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// Role selects the side of the NK handshake a session plays.
type Role int

const (
	// RoleInitiator is the client. It knows the responder's static public
	// key before the handshake and has no static key of its own.
	RoleInitiator Role = iota

	// RoleResponder is the server holding the static key pair.
	RoleResponder
)

// String returns "initiator" or "responder".
func (r Role) String() string {
	if r == RoleResponder {
		return "responder"
	}
	return "initiator"
}

// SessionConfig configures a Noise_NK session.
type SessionConfig struct {
	// Role selects initiator or responder behavior.
	Role Role

	// StaticKey is the responder's static key pair. Required for
	// RoleResponder, ignored for RoleInitiator.
	StaticKey *noise.DHKey

	// PeerStaticKey is the responder's 32-byte static public key. Required
	// for RoleInitiator, ignored for RoleResponder.
	PeerStaticKey []byte

	// Prologue is optional data that must match on both sides for the
	// handshake to succeed. Provides channel binding context.
	Prologue []byte
}

// Session is one Noise_NK channel. The handshake takes two messages:
//
//	initiator -> responder: e, es
//	responder -> initiator: e, ee
//
// after which Encrypt and Decrypt may be used. A Session is safe for
// concurrent use but messages must be decrypted in the order they were
// encrypted by the peer.
type Session struct {
	mu   sync.Mutex
	role Role
	hs   *noise.HandshakeState
	send *noise.CipherState
	recv *noise.CipherState
	done atomic.Bool
}

// NewSession validates the configuration and initializes the handshake
// state machine.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrHandshakeFailed)
	}

	config := noise.Config{
		CipherSuite: cipherSuite,
		Pattern:     noise.HandshakeNK,
		Initiator:   cfg.Role == RoleInitiator,
		Prologue:    cfg.Prologue,
	}

	switch cfg.Role {
	case RoleInitiator:
		if len(cfg.PeerStaticKey) != KeySize {
			return nil, fmt.Errorf("%w: peer static key must be %d bytes, got %d",
				ErrInvalidKeySize, KeySize, len(cfg.PeerStaticKey))
		}
		config.PeerStatic = cfg.PeerStaticKey
	case RoleResponder:
		if cfg.StaticKey == nil || len(cfg.StaticKey.Private) != KeySize || len(cfg.StaticKey.Public) != KeySize {
			return nil, fmt.Errorf("%w: responder requires a %d-byte static key pair", ErrInvalidKeySize, KeySize)
		}
		config.StaticKeypair = *cfg.StaticKey
	default:
		return nil, fmt.Errorf("%w: unknown role %d", ErrHandshakeFailed, cfg.Role)
	}

	hs, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("%w: init: %w", ErrHandshakeFailed, err)
	}

	return &Session{role: cfg.Role, hs: hs}, nil
}

// Role returns the side of the handshake this session plays.
func (s *Session) Role() Role {
	return s.role
}

// IsHandshakeComplete returns true if the handshake has completed
// and the session is ready for encrypted communication.
func (s *Session) IsHandshakeComplete() bool {
	return s.done.Load()
}

// Initiate produces the first handshake message. Initiator only.
func (s *Session) Initiate() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator {
		return nil, fmt.Errorf("%w: %s cannot initiate", ErrWrongRole, s.role)
	}
	if s.hs == nil {
		return nil, fmt.Errorf("%w: handshake already finished", ErrHandshakeFailed)
	}

	msg, _, _, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: write msg1: %w", ErrHandshakeFailed, err)
	}
	return msg, nil
}

// Respond consumes the initiator's message and returns the reply that
// completes the handshake. Responder only.
func (s *Session) Respond(msg1 []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder {
		return nil, fmt.Errorf("%w: %s cannot respond", ErrWrongRole, s.role)
	}
	if s.hs == nil {
		return nil, fmt.Errorf("%w: handshake already finished", ErrHandshakeFailed)
	}
	if len(msg1) == 0 {
		return nil, fmt.Errorf("%w: empty handshake message", ErrInvalidMessage)
	}

	if _, _, _, err := s.hs.ReadMessage(nil, msg1); err != nil {
		return nil, fmt.Errorf("%w: read msg1 (size=%d): %w", ErrHandshakeFailed, len(msg1), err)
	}

	msg2, cs1, cs2, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: write msg2: %w", ErrHandshakeFailed, err)
	}
	if cs1 == nil || cs2 == nil {
		return nil, fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}

	// cs1 encrypts initiator-to-responder traffic.
	s.finish(cs2, cs1)
	return msg2, nil
}

// Complete consumes the responder's reply and finishes the handshake.
// Initiator only.
func (s *Session) Complete(msg2 []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator {
		return fmt.Errorf("%w: %s cannot complete", ErrWrongRole, s.role)
	}
	if s.hs == nil {
		return fmt.Errorf("%w: handshake already finished", ErrHandshakeFailed)
	}
	if len(msg2) == 0 {
		return fmt.Errorf("%w: empty handshake message", ErrInvalidMessage)
	}

	_, cs1, cs2, err := s.hs.ReadMessage(nil, msg2)
	if err != nil {
		return fmt.Errorf("%w: read msg2 (size=%d): %w", ErrHandshakeFailed, len(msg2), err)
	}
	if cs1 == nil || cs2 == nil {
		return fmt.Errorf("%w: handshake did not complete", ErrHandshakeFailed)
	}

	s.finish(cs1, cs2)
	return nil
}

// finish installs the transport ciphers and drops the handshake state.
// Callers hold s.mu.
func (s *Session) finish(send, recv *noise.CipherState) {
	s.send = send
	s.recv = recv
	s.hs = nil
	s.done.Store(true)
}

// Encrypt encrypts a plaintext message using the established session keys.
// Returns ErrSessionNotReady if called before handshake completion.
// Returns ErrEncryptionFailed if the plaintext exceeds MaxMessageSize.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.done.Load() {
		return nil, ErrSessionNotReady
	}
	if len(plaintext) > MaxMessageSize {
		return nil, fmt.Errorf("%w: message size %d exceeds maximum %d",
			ErrEncryptionFailed, len(plaintext), MaxMessageSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ciphertext, err := s.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return ciphertext, nil
}

// Decrypt decrypts a ciphertext message using the established session keys.
// Returns ErrSessionNotReady if called before handshake completion.
// Returns ErrDecryptionFailed if the ciphertext is invalid or tampered.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.done.Load() {
		return nil, ErrSessionNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plaintext, err := s.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
