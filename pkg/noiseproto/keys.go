// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package noiseproto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
)

// keyFileMode is the permission of key files written by this package.
const keyFileMode = 0o600

// GenerateStaticKey generates a new Curve25519 static key pair suitable for
// use as the service's Noise identity key.
func GenerateStaticKey() (*noise.DHKey, error) {
	key, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	return &key, nil
}

// LoadStaticKey creates a DHKey from raw private key bytes by deriving the
// corresponding Curve25519 public key via scalar base multiplication. The
// input is copied.
func LoadStaticKey(privateKey []byte) (*noise.DHKey, error) {
	if len(privateKey) != KeySize {
		return nil, ErrInvalidKeySize
	}

	priv := make([]byte, KeySize)
	copy(priv, privateKey)

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		WipeBytes(priv)
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeySize, err)
	}

	return &noise.DHKey{
		Private: priv,
		Public:  pub,
	}, nil
}

// EncodeStaticKey encodes a static key's private component to a hex string
// for persistent storage.
func EncodeStaticKey(key *noise.DHKey) string {
	return hex.EncodeToString(key.Private)
}

// DecodeStaticKey decodes a hex-encoded private key and derives the full
// DHKey. Surrounding whitespace is ignored.
func DecodeStaticKey(encoded string) (*noise.DHKey, error) {
	privateKey, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	defer WipeBytes(privateKey)
	return LoadStaticKey(privateKey)
}

// PublicKeyHex returns the hex encoding of the key's public component, the
// form in which clients are configured with the server identity.
func PublicKeyHex(key *noise.DHKey) string {
	return hex.EncodeToString(key.Public)
}

// DecodePublicKey decodes a hex-encoded 32-byte Curve25519 public key.
func DecodePublicKey(encoded string) ([]byte, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex encoding: %w", ErrInvalidKeySize, err)
	}
	if len(pub) != KeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeySize, KeySize, len(pub))
	}
	return pub, nil
}

// ReadStaticKeyFile loads a hex-encoded private key from path. The file
// contents are wiped from memory once decoded.
func ReadStaticKeyFile(path string) (*noise.DHKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrKeyFile, path, err)
	}
	defer WipeBytes(data)

	key, err := DecodeStaticKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrKeyFile, path, err)
	}
	return key, nil
}

// WriteStaticKeyFile writes the hex-encoded private key to path with 0600
// permissions. An existing file is never overwritten.
func WriteStaticKeyFile(path string, key *noise.DHKey) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFileMode)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrKeyFile, path, err)
	}
	if _, err := f.WriteString(EncodeStaticKey(key) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrKeyFile, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrKeyFile, path, err)
	}
	return nil
}

// LoadOrGenerateStaticKeyFile reads the key at path, or generates a new key
// and writes it there when the file does not exist. generated reports
// which of the two happened.
func LoadOrGenerateStaticKeyFile(path string) (key *noise.DHKey, generated bool, err error) {
	key, err = ReadStaticKeyFile(path)
	if err == nil {
		return key, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	key, err = GenerateStaticKey()
	if err != nil {
		return nil, false, err
	}
	if err := WriteStaticKeyFile(path, key); err != nil {
		WipeDHKey(key)
		return nil, false, err
	}
	return key, true, nil
}
