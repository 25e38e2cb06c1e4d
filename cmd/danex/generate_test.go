// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestCertFile(t *testing.T) (string, *x509.Certificate) {
	t.Helper()

	der, _ := newTestCert(t, "mail.example.com")
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cert.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	return path, cert
}

func TestGenerate_Default(t *testing.T) {
	certFile, cert := createTestCertFile(t)

	out, err := executeCommand(t, context.Background(),
		"generate", "--cert-file", certFile, "--hostname", "mail.example.com", "--port", "25", "--quiet")
	require.NoError(t, err)

	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	assert.Equal(t, "_25._tcp.mail.example.com. IN TLSA 3 1 1 "+hex.EncodeToString(sum[:])+"\n", out)
}

func TestGenerate_All(t *testing.T) {
	certFile, _ := createTestCertFile(t)

	out, err := executeCommand(t, context.Background(),
		"generate", "--cert-file", certFile, "--hostname", "example.com", "--usage", "2", "--all", "--quiet")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "_443._tcp.example.com. IN TLSA 2 "), line)
	}
}

func TestGenerate_CustomSelectorAndMatching(t *testing.T) {
	certFile, cert := createTestCertFile(t)

	out, err := executeCommand(t, context.Background(),
		"generate", "--cert-file", certFile, "--hostname", "example.com",
		"--selector", "0", "--matching-type", "0", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "IN TLSA 3 0 0 "+hex.EncodeToString(cert.Raw))
}

func TestGenerate_InvalidInput(t *testing.T) {
	certFile, _ := createTestCertFile(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing cert file", []string{"--hostname", "example.com"}, ErrInvalidInput},
		{"missing hostname", []string{"--cert-file", certFile}, ErrInvalidInput},
		{"bad port", []string{"--cert-file", certFile, "--hostname", "example.com", "--port", "70000"}, ErrInvalidInput},
		{"bad usage", []string{"--cert-file", certFile, "--hostname", "example.com", "--usage", "9"}, ErrInvalidInput},
		{"bad matching type", []string{"--cert-file", certFile, "--hostname", "example.com", "--matching-type", "5"}, ErrInvalidInput},
		{"nonexistent cert file", []string{"--cert-file", "/nonexistent/cert.pem", "--hostname", "example.com"}, ErrFileOperation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"generate", "--quiet"}, tc.args...)
			_, err := executeCommand(t, context.Background(), args...)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadCertFromPEMFile(t *testing.T) {
	dir := t.TempDir()

	notPEM := filepath.Join(dir, "not.pem")
	require.NoError(t, os.WriteFile(notPEM, []byte("not a certificate"), 0o644))
	_, err := loadCertFromPEMFile(notPEM)
	assert.ErrorIs(t, err, ErrInvalidInput)

	keyPEM := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyPEM, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1}}), 0o644))
	_, err = loadCertFromPEMFile(keyPEM)
	assert.ErrorIs(t, err, ErrInvalidInput)

	badDER := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(badDER, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x30, 0x00}}), 0o644))
	_, err = loadCertFromPEMFile(badDER)
	assert.ErrorIs(t, err, ErrInvalidInput)

	certFile, want := createTestCertFile(t)
	cert, err := loadCertFromPEMFile(certFile)
	require.NoError(t, err)
	assert.Equal(t, want.Raw, cert.Raw)
}
